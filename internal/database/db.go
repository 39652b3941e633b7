package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// DB wraps the database connection
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// New wraps an open handle. Used directly by tests with sqlmock.
func New(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

// Connect establishes a connection to the database
func Connect(ctx context.Context, connectionString string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return New(db, logger), nil
}

// RunMigrations executes the embedded SQL migration files in name order.
// Every statement is idempotent so this runs on each start.
func (db *DB) RunMigrations(ctx context.Context) error {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		db.logger.Info("Applied migration", zap.String("file", strings.TrimPrefix(name, "migrations/")))
	}
	return nil
}

const siteColumns = `id, name, city, state, latitude, longitude, manager_name, manager_email, is_active, created_at, updated_at`

func scanSite(row interface{ Scan(...any) error }) (*Site, error) {
	var s Site
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&s.City,
		&s.State,
		&s.Latitude,
		&s.Longitude,
		&s.ManagerName,
		&s.ManagerEmail,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActiveSites returns every site with is_active set, by name.
func (db *DB) ListActiveSites(ctx context.Context) ([]*Site, error) {
	query := `SELECT ` + siteColumns + ` FROM job_sites WHERE is_active = TRUE ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sites: %w", err)
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// GetSite returns the site with the given id or ErrNotFound.
func (db *DB) GetSite(ctx context.Context, id int64) (*Site, error) {
	query := `SELECT ` + siteColumns + ` FROM job_sites WHERE id = $1`

	s, err := scanSite(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site %d: %w", id, err)
	}
	return s, nil
}

// LastCooldown returns when (site, alertType) was last notified.
// ok is false when no cooldown row exists.
func (db *DB) LastCooldown(ctx context.Context, siteID int64, alertType string) (time.Time, bool, error) {
	query := `
		SELECT last_alerted_at
		FROM alert_cooldowns
		WHERE site_id = $1 AND alert_type = $2
	`

	var last time.Time
	err := db.QueryRowContext(ctx, query, siteID, alertType).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cooldown: %w", err)
	}
	return last, true, nil
}

// IsCooldownActive reports whether (site, alertType) was notified after since.
func (db *DB) IsCooldownActive(ctx context.Context, siteID int64, alertType string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM alert_cooldowns
			WHERE site_id = $1 AND alert_type = $2 AND last_alerted_at > $3
		)
	`

	var active bool
	if err := db.QueryRowContext(ctx, query, siteID, alertType, since).Scan(&active); err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return active, nil
}

// SetCooldown upserts the last-notified time. Concurrent writers to the
// same key resolve last-writer-wins.
func (db *DB) SetCooldown(ctx context.Context, siteID int64, alertType string, at time.Time) error {
	query := `
		INSERT INTO alert_cooldowns (site_id, alert_type, last_alerted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (site_id, alert_type) DO UPDATE
		SET last_alerted_at = EXCLUDED.last_alerted_at
	`

	if _, err := db.ExecContext(ctx, query, siteID, alertType, at); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// InsertAlertRecord appends an alert record and fills its ID and CreatedAt.
func (db *DB) InsertAlertRecord(ctx context.Context, rec *AlertRecord) (int64, error) {
	query := `
		INSERT INTO alert_history (
			site_id, alert_type, severity, label, threshold_value, actual_value,
			description, conditions_json, forecast_json, email_sent, email_recipient
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := db.QueryRowContext(
		ctx,
		query,
		rec.SiteID,
		rec.AlertType,
		rec.Severity,
		rec.Label,
		rec.ThresholdValue,
		rec.ActualValue,
		rec.Description,
		nullableJSON(rec.ConditionsJSON),
		nullableJSON(rec.ForecastJSON),
		rec.EmailSent,
		rec.EmailRecipient,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert record: %w", err)
	}
	return rec.ID, nil
}

const historyColumns = `
	h.id, h.site_id, h.alert_type, h.severity, h.label, h.threshold_value, h.actual_value,
	h.description, h.conditions_json, h.forecast_json, h.email_sent, h.email_recipient,
	h.created_at, s.name, s.city, s.state
`

// ListAlertHistory returns alerts newest first, optionally for one site.
func (db *DB) ListAlertHistory(ctx context.Context, filter HistoryFilter, limit, offset int) ([]*AlertHistoryEntry, error) {
	query := `SELECT ` + historyColumns + `
		FROM alert_history h
		JOIN job_sites s ON s.id = h.site_id`
	args := []any{}
	if filter.SiteID != 0 {
		args = append(args, filter.SiteID)
		query += fmt.Sprintf(" WHERE h.site_id = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY h.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// ListActiveAlerts returns alerts created after since, warnings first,
// then watches, then advisories, newest first within a tier.
func (db *DB) ListActiveAlerts(ctx context.Context, since time.Time) ([]*AlertHistoryEntry, error) {
	query := `SELECT ` + historyColumns + `
		FROM alert_history h
		JOIN job_sites s ON s.id = h.site_id
		WHERE h.created_at > $1
		ORDER BY
			CASE h.severity WHEN 'warning' THEN 1 WHEN 'watch' THEN 2 ELSE 3 END,
			h.created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]*AlertHistoryEntry, error) {
	entries := []*AlertHistoryEntry{}
	for rows.Next() {
		var (
			e                    AlertHistoryEntry
			threshold, actual    sql.NullFloat64
			conditions, forecast []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.SiteID,
			&e.AlertType,
			&e.Severity,
			&e.Label,
			&threshold,
			&actual,
			&e.Description,
			&conditions,
			&forecast,
			&e.EmailSent,
			&e.EmailRecipient,
			&e.CreatedAt,
			&e.SiteName,
			&e.SiteCity,
			&e.SiteState,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		e.ThresholdValue = threshold.Float64
		e.ActualValue = actual.Float64
		e.ConditionsJSON = conditions
		e.ForecastJSON = forecast
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
