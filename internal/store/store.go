// Package store persists one status row per calendar day in SQLite or
// Postgres through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// ErrNotFound is returned by Get when no row exists for the date.
var ErrNotFound = errors.New("status not found")

// Driver names a supported backend.
type Driver string

const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
)

const dateLayout = "2006-01-02"

const schema = `CREATE TABLE IF NOT EXISTS coral_status (
	date              TEXT PRIMARY KEY,
	sst               DOUBLE PRECISION NOT NULL,
	thermal_threshold DOUBLE PRECISION NOT NULL,
	anomaly           DOUBLE PRECISION NOT NULL,
	dhw               DOUBLE PRECISION NOT NULL,
	wind_speed        DOUBLE PRECISION NOT NULL,
	irradiance        DOUBLE PRECISION NOT NULL,
	turbidity         DOUBLE PRECISION NOT NULL,
	salinity          DOUBLE PRECISION NOT NULL,
	ph                DOUBLE PRECISION NOT NULL,
	oxygen            DOUBLE PRECISION NOT NULL,
	nitrate           DOUBLE PRECISION NOT NULL,
	chlorophyll       DOUBLE PRECISION NOT NULL,
	risk_score        DOUBLE PRECISION NOT NULL,
	alert_level       TEXT NOT NULL,
	alert_basis       TEXT NOT NULL,
	strategy          TEXT NOT NULL,
	origin            TEXT NOT NULL,
	updated_at        TEXT NOT NULL
)`

// columns lists the persisted Status fields in statement order.
const columns = `date, sst, thermal_threshold, anomaly, dhw, wind_speed, irradiance, turbidity,
	salinity, ph, oxygen, nitrate, chlorophyll, risk_score, alert_level, alert_basis, strategy, origin`

const upsertSQL = `INSERT INTO coral_status (` + columns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (date) DO UPDATE SET
	sst = excluded.sst,
	thermal_threshold = excluded.thermal_threshold,
	anomaly = excluded.anomaly,
	dhw = excluded.dhw,
	wind_speed = excluded.wind_speed,
	irradiance = excluded.irradiance,
	turbidity = excluded.turbidity,
	salinity = excluded.salinity,
	ph = excluded.ph,
	oxygen = excluded.oxygen,
	nitrate = excluded.nitrate,
	chlorophyll = excluded.chlorophyll,
	risk_score = excluded.risk_score,
	alert_level = excluded.alert_level,
	alert_basis = excluded.alert_basis,
	strategy = excluded.strategy,
	origin = excluded.origin,
	updated_at = excluded.updated_at`

// Store is the daily status table.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open connects to the backend and ensures the table exists. For SQLite the
// dsn is a file path; an empty dsn means coral.db.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case SQLite, "":
		driver = SQLite
		if dsn == "" {
			dsn = "coral.db"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn)
		if err == nil {
			// one writer at a time avoids SQLITE_BUSY on the shared file
			db.SetMaxOpenConns(1)
		}
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create status table: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert inserts or overwrites the row for st.Date.
func (s *Store) Upsert(ctx context.Context, st domain.Status) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(upsertSQL), args(st)...); err != nil {
		return fmt.Errorf("upsert %s: %w", st.Date.Format(dateLayout), err)
	}
	return nil
}

// ReplaceAll deletes every row and writes statuses in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, statuses []domain.Status) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM coral_status`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertSQL))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, st := range statuses {
		if _, err := stmt.ExecContext(ctx, args(st)...); err != nil {
			return fmt.Errorf("insert %s: %w", st.Date.Format(dateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns rows on or after since (zero means all), most recent first.
// A limit of zero or less means no limit.
func (s *Store) List(ctx context.Context, since time.Time, limit int) ([]domain.Status, error) {
	q := `SELECT ` + columns + ` FROM coral_status`
	var params []any
	if !since.IsZero() {
		q += ` WHERE date >= ?`
		params = append(params, domain.TruncateDay(since).Format(dateLayout))
	}
	q += ` ORDER BY date DESC`
	if limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), params...)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Status
	for rows.Next() {
		st, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Get returns the row for date's calendar day.
func (s *Store) Get(ctx context.Context, date time.Time) (domain.Status, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM coral_status WHERE date = ?`),
		domain.TruncateDay(date).Format(dateLayout))
	st, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Status{}, fmt.Errorf("%w: %s", ErrNotFound, date.Format(dateLayout))
	}
	return st, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (domain.Status, error) {
	var (
		st                  domain.Status
		date                string
		level, basis, strat string
		origin              string
	)
	err := row.Scan(&date, &st.SST, &st.ThermalThreshold, &st.Anomaly, &st.DHW, &st.WindSpeed,
		&st.Irradiance, &st.Turbidity, &st.Salinity, &st.PH, &st.Oxygen, &st.Nitrate, &st.Chlorophyll,
		&st.RiskScore, &level, &basis, &strat, &origin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, err
		}
		return st, fmt.Errorf("scan status: %w", err)
	}
	st.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return st, fmt.Errorf("parse date %q: %w", date, err)
	}
	st.AlertLevel = domain.AlertLevel(level)
	st.AlertBasis = domain.Basis(basis)
	st.Strategy = domain.Strategy(strat)
	st.Origin = domain.Origin(origin)
	return st, nil
}

func args(st domain.Status) []any {
	return []any{
		domain.TruncateDay(st.Date).Format(dateLayout),
		st.SST, st.ThermalThreshold, st.Anomaly, st.DHW, st.WindSpeed, st.Irradiance, st.Turbidity,
		st.Salinity, st.PH, st.Oxygen, st.Nitrate, st.Chlorophyll, st.RiskScore,
		string(st.AlertLevel), string(st.AlertBasis), string(st.Strategy), string(st.Origin),
		domain.Now().UTC().Format(time.RFC3339),
	}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(q string) string {
	if s.driver != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
