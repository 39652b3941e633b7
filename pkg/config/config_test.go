package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 95.0, cfg.Alerts.Current.HeatIndex)
	assert.Equal(t, 20.0, cfg.Alerts.Current.ColdTemp)
	assert.Equal(t, 45.0, cfg.Alerts.Current.WindSpeed)
	assert.Equal(t, 150.0, cfg.Alerts.Current.AQI)
	assert.Equal(t, cfg.Alerts.Current, cfg.Alerts.Forecast)
	assert.Equal(t, 4*time.Hour, cfg.Alerts.CooldownWindow)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Alerts.StartupDelay)
	assert.Equal(t, EmailProviderLog, cfg.Email.Provider)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("THRESHOLD_HEAT_INDEX", "100.5")
	t.Setenv("FORECAST_THRESHOLD_AQI", "175")
	t.Setenv("ALERT_COOLDOWN", "2h")
	t.Setenv("POLL_INTERVAL", "10m")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EMAIL_PROVIDER", "SendGrid")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100.5, cfg.Alerts.Current.HeatIndex)
	assert.Equal(t, 175.0, cfg.Alerts.Forecast.AQI)
	assert.Equal(t, 2*time.Hour, cfg.Alerts.CooldownWindow)
	assert.Equal(t, 10*time.Minute, cfg.Alerts.PollInterval)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, EmailProviderSendGrid, cfg.Email.Provider)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("ALERT_COOLDOWN", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 4*time.Hour, cfg.Alerts.CooldownWindow)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero poll interval", "POLL_INTERVAL", "0s"},
		{"negative cooldown", "ALERT_COOLDOWN", "-1h"},
		{"negative concurrency", "MAX_CONCURRENT_SITES", "-2"},
		{"unknown provider", "EMAIL_PROVIDER", "pigeon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "alerts", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=alerts sslmode=require", d.ConnectionString())
}
