package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"storewatch/internal/domain"
)

const (
	sqliteSchemaSQL = `CREATE TABLE IF NOT EXISTS storefronts (
        id         INTEGER PRIMARY KEY AUTOINCREMENT,
        name       TEXT NOT NULL,
        url        TEXT NOT NULL UNIQUE,
        platform   TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS status_checks (
        id            INTEGER PRIMARY KEY AUTOINCREMENT,
        storefront_id INTEGER NOT NULL,
        status        TEXT NOT NULL,
        reason        TEXT,
        response_ms   INTEGER,
        oos_items     TEXT,
        checked_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (storefront_id) REFERENCES storefronts (id)
    );
    CREATE INDEX IF NOT EXISTS idx_status_checks_checked_at
        ON status_checks (checked_at);`

	sqliteUpsertStorefrontSQL = `INSERT INTO storefronts (name, url, platform)
    VALUES (?, ?, ?)
    ON CONFLICT (url) DO UPDATE
    SET name = excluded.name
    RETURNING id;`

	sqliteAppendCheckSQL = `INSERT INTO status_checks (
        storefront_id,
        status,
        reason,
        response_ms,
        oos_items,
        checked_at
    ) VALUES (?,?,?,?,?,?);`

	sqliteHourlySummarySQL = `SELECT
        CAST(strftime('%H', sc.checked_at, ?1) AS INTEGER) AS hour,
        CAST(ROUND(AVG(CASE WHEN sc.status = 'ONLINE' THEN 100.0 ELSE 0.0 END)) AS INTEGER) AS online_pct,
        COUNT(*) AS data_points
    FROM status_checks sc
    WHERE DATE(sc.checked_at, ?1) = ?2
    GROUP BY strftime('%H', sc.checked_at, ?1)
    ORDER BY hour;`

	sqliteDailyUptimeSQL = `SELECT
        s.name,
        s.platform,
        COUNT(sc.id) AS total_checks,
        SUM(CASE WHEN sc.status = 'ONLINE' THEN 1 ELSE 0 END) AS online_checks,
        CAST(ROUND(
            SUM(CASE WHEN sc.status = 'ONLINE' THEN 1 ELSE 0 END) * 100.0 / COUNT(sc.id)
        ) AS INTEGER) AS uptime_pct
    FROM storefronts s
    JOIN status_checks sc ON s.id = sc.storefront_id
    WHERE DATE(sc.checked_at, ?1) = ?2
    GROUP BY s.id, s.name, s.platform
    ORDER BY uptime_pct DESC;`

	sqliteRecentChecksSQL = `SELECT
        s.name,
        s.platform,
        sc.status,
        sc.reason,
        sc.response_ms,
        sc.oos_items,
        sc.checked_at
    FROM status_checks sc
    JOIN storefronts s ON s.id = sc.storefront_id
    ORDER BY sc.checked_at DESC, sc.id DESC
    LIMIT ?;`
)

// SQLiteStore is the embedded dialect twin of PostgresStore. Timestamps are
// stored as UTC strings and shifted with a fixed offset modifier when
// bucketing, which matches how the hosted dialect applies AT TIME ZONE.
type SQLiteStore struct {
	db     *sql.DB
	loc    *time.Location
	logger zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database file and ensures the
// schema exists.
func OpenSQLite(ctx context.Context, path string, loc *time.Location, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database.sqlite_path is required for the sqlite driver")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Concurrent writers are rare here, a single connection avoids lock
	// contention inside the embedded engine.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		loc:    loc,
		logger: logger.With().Str("component", "storage").Str("driver", "sqlite").Logger(),
	}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	return s.db.PingContext(ctx)
}

// UpsertStorefront gets or creates a storefront row keyed by URL.
func (s *SQLiteStore) UpsertStorefront(ctx context.Context, sf domain.Storefront) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, sqliteUpsertStorefrontSQL, sf.DisplayName, sf.URL, string(sf.Platform)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert storefront: %w", err)
	}
	return id, nil
}

// AppendCheck persists one immutable check record.
func (s *SQLiteStore) AppendCheck(ctx context.Context, rec domain.CheckRecord) error {
	items, err := json.Marshal(rec.OOSItems)
	if err != nil {
		return fmt.Errorf("encode oos items: %w", err)
	}
	_, execErr := s.db.ExecContext(ctx, sqliteAppendCheckSQL,
		rec.StorefrontID,
		string(rec.Status),
		rec.Reason,
		rec.LatencyMS,
		string(items),
		rec.CheckedAt.UTC().Format(sqliteTimeLayout),
	)
	if execErr != nil {
		return fmt.Errorf("append check: %w", execErr)
	}
	return nil
}

const sqliteTimeLayout = "2006-01-02 15:04:05"

// HourlySummary aggregates one local day into per-hour online percentages.
func (s *SQLiteStore) HourlySummary(ctx context.Context, day time.Time) ([]domain.HourlyRow, error) {
	offset := zoneOffsetModifier(s.loc, day)
	rows, err := s.db.QueryContext(ctx, sqliteHourlySummarySQL, offset, localDay(day, s.loc))
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
func (s *SQLiteStore) DailyUptime(ctx context.Context, day time.Time) ([]domain.DailyRow, error) {
	offset := zoneOffsetModifier(s.loc, day)
	rows, err := s.db.QueryContext(ctx, sqliteDailyUptimeSQL, offset, localDay(day, s.loc))
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
func (s *SQLiteStore) RecentChecks(ctx context.Context, limit int) ([]CheckLog, error) {
	rows, err := s.db.QueryContext(ctx, sqliteRecentChecksSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	out := make([]CheckLog, 0, limit)
	for rows.Next() {
		var (
			log       CheckLog
			platform  string
			status    string
			reason    sql.NullString
			items     sql.NullString
			checkedAt string
		)
		if err := rows.Scan(&log.StoreName, &platform, &status, &reason, &log.LatencyMS, &items, &checkedAt); err != nil {
			return nil, err
		}
		log.Platform = domain.Platform(platform)
		log.Status = domain.Status(status)
		log.Reason = reason.String
		if items.Valid && items.String != "" && items.String != "null" {
			if err := json.Unmarshal([]byte(items.String), &log.OOSItems); err != nil {
				return nil, fmt.Errorf("decode oos items: %w", err)
			}
		}
		ts, err := time.ParseInLocation(sqliteTimeLayout, checkedAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse checked_at: %w", err)
		}
		log.CheckedAt = ts
		out = append(out, log)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
