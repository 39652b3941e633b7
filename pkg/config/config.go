package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Weather  WeatherConfig
	Alerts   AlertsConfig
	Email    EmailConfig
	Slack    SlackConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig is optional. An empty Addr disables the cooldown cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicAlerts string
	GroupID     string
}

type HTTPConfig struct {
	Port int
}

func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type LogConfig struct {
	Level  string
	Format string
}

type WeatherConfig struct {
	ForecastURL   string
	AirQualityURL string
	AdvisoryURL   string
	UserAgent     string
	Timeout       time.Duration
}

// Thresholds holds per-metric trigger values. Temperatures are °F, wind is mph.
type Thresholds struct {
	HeatIndex float64
	ColdTemp  float64
	WindSpeed float64
	AQI       float64
}

type AlertsConfig struct {
	Current            Thresholds
	Forecast           Thresholds
	CooldownWindow     time.Duration
	PollInterval       time.Duration
	StartupDelay       time.Duration
	ActiveWindow       time.Duration
	MaxConcurrentSites int
	FetchTimeout       time.Duration
	DispatchTimeout    time.Duration
	StoreTimeout       time.Duration
}

const (
	EmailProviderResend   = "resend"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSMTP     = "smtp"
	EmailProviderLog      = "log"
)

type EmailConfig struct {
	Provider       string
	From           string
	FromName       string
	ResendAPIKey   string
	ResendURL      string
	SendGridAPIKey string
	SMTP           SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type SlackConfig struct {
	WebhookURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "alerts_user"),
			Password: getEnv("DB_PASSWORD", "alerts_pass"),
			DBName:   getEnv("DB_NAME", "weather_alerts"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "weather.alerts"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "alert-notifier"),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("PORT", 3001),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Weather: WeatherConfig{
			ForecastURL:   getEnv("OPEN_METEO_URL", "https://api.open-meteo.com"),
			AirQualityURL: getEnv("OPEN_METEO_AQ_URL", "https://air-quality-api.open-meteo.com"),
			AdvisoryURL:   getEnv("NWS_URL", "https://api.weather.gov"),
			UserAgent:     getEnv("NWS_USER_AGENT", "weather-alerts (ops@example.com)"),
			Timeout:       getEnvAsDuration("WEATHER_TIMEOUT", 15*time.Second),
		},
		Alerts: AlertsConfig{
			Current: Thresholds{
				HeatIndex: getEnvAsFloat("THRESHOLD_HEAT_INDEX", 95),
				ColdTemp:  getEnvAsFloat("THRESHOLD_COLD_TEMP", 20),
				WindSpeed: getEnvAsFloat("THRESHOLD_WIND_SPEED", 45),
				AQI:       getEnvAsFloat("THRESHOLD_AQI", 150),
			},
			Forecast: Thresholds{
				HeatIndex: getEnvAsFloat("FORECAST_THRESHOLD_HEAT_INDEX", 95),
				ColdTemp:  getEnvAsFloat("FORECAST_THRESHOLD_COLD_TEMP", 20),
				WindSpeed: getEnvAsFloat("FORECAST_THRESHOLD_WIND_SPEED", 45),
				AQI:       getEnvAsFloat("FORECAST_THRESHOLD_AQI", 150),
			},
			CooldownWindow:     getEnvAsDuration("ALERT_COOLDOWN", 4*time.Hour),
			PollInterval:       getEnvAsDuration("POLL_INTERVAL", 30*time.Minute),
			StartupDelay:       getEnvAsDuration("STARTUP_DELAY", 5*time.Second),
			ActiveWindow:       getEnvAsDuration("ACTIVE_ALERT_WINDOW", 4*time.Hour),
			MaxConcurrentSites: getEnvAsInt("MAX_CONCURRENT_SITES", 8),
			FetchTimeout:       getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			DispatchTimeout:    getEnvAsDuration("DISPATCH_TIMEOUT", 15*time.Second),
			StoreTimeout:       getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Email: EmailConfig{
			Provider:       strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
			From:           getEnv("EMAIL_FROM", "alerts@example.com"),
			FromName:       getEnv("EMAIL_FROM_NAME", "Site Weather Alerts"),
			ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
			ResendURL:      getEnv("RESEND_URL", "https://api.resend.com"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			SMTP: SMTPConfig{
				Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
				Port:     getEnvAsInt("SMTP_PORT", 587),
				Username: getEnv("SMTP_USERNAME", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
			},
		},
		Slack: SlackConfig{
			WebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the scheduler or dispatcher cannot run with.
func (c *Config) Validate() error {
	if c.Alerts.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Alerts.PollInterval)
	}
	if c.Alerts.CooldownWindow <= 0 {
		return fmt.Errorf("ALERT_COOLDOWN must be positive, got %s", c.Alerts.CooldownWindow)
	}
	if c.Alerts.MaxConcurrentSites < 0 {
		return fmt.Errorf("MAX_CONCURRENT_SITES must not be negative, got %d", c.Alerts.MaxConcurrentSites)
	}
	switch c.Email.Provider {
	case EmailProviderResend, EmailProviderSendGrid, EmailProviderSMTP, EmailProviderLog:
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
