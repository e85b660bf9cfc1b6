package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storewatch/internal/config"
	"storewatch/internal/domain"
)

const (
	pgSchemaSQL = `CREATE TABLE IF NOT EXISTS storefronts (
        id         SERIAL PRIMARY KEY,
        name       VARCHAR(255) NOT NULL,
        url        TEXT NOT NULL UNIQUE,
        platform   VARCHAR(50) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS status_checks (
        id            SERIAL PRIMARY KEY,
        storefront_id INTEGER NOT NULL REFERENCES storefronts(id),
        status        VARCHAR(16) NOT NULL,
        reason        TEXT,
        response_ms   INTEGER,
        oos_items     JSONB,
        checked_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_status_checks_checked_at
        ON status_checks (checked_at);`

	pgUpsertStorefrontSQL = `INSERT INTO storefronts (name, url, platform)
    VALUES ($1, $2, $3)
    ON CONFLICT (url) DO UPDATE
    SET name = EXCLUDED.name
    RETURNING id;`

	pgAppendCheckSQL = `INSERT INTO status_checks (
        storefront_id,
        status,
        reason,
        response_ms,
        oos_items,
        checked_at
    ) VALUES ($1,$2,$3,$4,$5,$6);`

	pgHourlySummarySQL = `SELECT
        EXTRACT(HOUR FROM sc.checked_at AT TIME ZONE $1)::integer AS hour,
        ROUND(AVG(CASE WHEN sc.status = 'ONLINE' THEN 100.0 ELSE 0.0 END))::integer AS online_pct,
        COUNT(*) AS data_points
    FROM status_checks sc
    WHERE DATE(sc.checked_at AT TIME ZONE $1) = $2::date
    GROUP BY EXTRACT(HOUR FROM sc.checked_at AT TIME ZONE $1)
    ORDER BY hour;`

	pgDailyUptimeSQL = `SELECT
        s.name,
        s.platform,
        COUNT(sc.id) AS total_checks,
        SUM(CASE WHEN sc.status = 'ONLINE' THEN 1 ELSE 0 END) AS online_checks,
        ROUND(
            (SUM(CASE WHEN sc.status = 'ONLINE' THEN 1 ELSE 0 END) * 100.0 / COUNT(sc.id))::numeric,
            0
        )::integer AS uptime_pct
    FROM storefronts s
    JOIN status_checks sc ON s.id = sc.storefront_id
    WHERE DATE(sc.checked_at AT TIME ZONE $1) = $2::date
    GROUP BY s.id, s.name, s.platform
    ORDER BY uptime_pct DESC;`

	pgRecentChecksSQL = `SELECT
        s.name,
        s.platform,
        sc.status,
        sc.reason,
        sc.response_ms,
        sc.oos_items,
        sc.checked_at
    FROM status_checks sc
    JOIN storefronts s ON s.id = sc.storefront_id
    ORDER BY sc.checked_at DESC
    LIMIT $1;`
)

// PostgresStore serves check records out of PostgreSQL via pgx.
type PostgresStore struct {
	pool   *pgxpool.Pool
	loc    *time.Location
	logger zerolog.Logger
}

// OpenPostgres configures a pgx pool from runtime settings and ensures the
// schema exists.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, loc *time.Location, logger zerolog.Logger) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for the postgres driver")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		loc:    loc,
		logger: logger.With().Str("component", "storage").Str("driver", "postgres").Logger(),
	}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	return s.pool.Ping(ctx)
}

// UpsertStorefront gets or creates a storefront row keyed by URL.
func (s *PostgresStore) UpsertStorefront(ctx context.Context, sf domain.Storefront) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, pgUpsertStorefrontSQL, sf.DisplayName, sf.URL, string(sf.Platform)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert storefront: %w", err)
	}
	return id, nil
}

// AppendCheck persists one immutable check record.
func (s *PostgresStore) AppendCheck(ctx context.Context, rec domain.CheckRecord) error {
	items, err := json.Marshal(rec.OOSItems)
	if err != nil {
		return fmt.Errorf("encode oos items: %w", err)
	}
	_, execErr := s.pool.Exec(ctx, pgAppendCheckSQL,
		rec.StorefrontID,
		string(rec.Status),
		rec.Reason,
		rec.LatencyMS,
		items,
		rec.CheckedAt.UTC(),
	)
	if execErr != nil {
		return fmt.Errorf("append check: %w", execErr)
	}
	return nil
}

// HourlySummary aggregates one local day into per-hour online percentages.
func (s *PostgresStore) HourlySummary(ctx context.Context, day time.Time) ([]domain.HourlyRow, error) {
	rows, err := s.pool.Query(ctx, pgHourlySummarySQL, s.loc.String(), localDay(day, s.loc))
	if err != nil {
		return nil, fmt.Errorf("hourly summary: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HourlyRow, 0)
	for rows.Next() {
		var row domain.HourlyRow
		if err := rows.Scan(&row.Hour, &row.OnlinePct, &row.DataPoints); err != nil {
			return nil, err
		}
		// offline is the exact complement, never rounded on its own.
		row.OfflinePct = 100 - row.OnlinePct
		out = append(out, row)
	}
	return out, rows.Err()
}

// DailyUptime aggregates one local day into per-storefront uptime.
func (s *PostgresStore) DailyUptime(ctx context.Context, day time.Time) ([]domain.DailyRow, error) {
	rows, err := s.pool.Query(ctx, pgDailyUptimeSQL, s.loc.String(), localDay(day, s.loc))
	if err != nil {
		return nil, fmt.Errorf("daily uptime: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DailyRow, 0)
	for rows.Next() {
		var row domain.DailyRow
		var platform string
		if err := rows.Scan(&row.Name, &platform, &row.TotalChecks, &row.OnlineChecks, &row.UptimePct); err != nil {
			return nil, err
		}
		row.Platform = domain.Platform(platform)
		out = append(out, row)
	}
	return out, rows.Err()
}

// RecentChecks lists the latest check records, newest first.
func (s *PostgresStore) RecentChecks(ctx context.Context, limit int) ([]CheckLog, error) {
	rows, err := s.pool.Query(ctx, pgRecentChecksSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	out := make([]CheckLog, 0, limit)
	for rows.Next() {
		var (
			log      CheckLog
			platform string
			status   string
			items    []byte
		)
		if err := rows.Scan(&log.StoreName, &platform, &status, &log.Reason, &log.LatencyMS, &items, &log.CheckedAt); err != nil {
			return nil, err
		}
		log.Platform = domain.Platform(platform)
		log.Status = domain.Status(status)
		if len(items) > 0 {
			if err := json.Unmarshal(items, &log.OOSItems); err != nil {
				return nil, fmt.Errorf("decode oos items: %w", err)
			}
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
