package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// SQLiteStore implements RunStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry RetryConfig
}

// NewSQLiteStore creates a new SQLite-based run store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, retry: DefaultRetryConfig()}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Pricing runs, one row per priced option
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		model TEXT NOT NULL,
		option_type TEXT NOT NULL,
		spot REAL NOT NULL,
		strike REAL NOT NULL,
		maturity REAL NOT NULL,
		rate REAL NOT NULL,
		volatility REAL NOT NULL,
		price REAL NOT NULL,
		greeks TEXT,
		std_error REAL,
		samples INTEGER,
		seed TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model, option_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun records a pricing run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.Run) error {
	var greeks sql.NullString
	if run.Greeks != nil {
		data, err := json.Marshal(run.Greeks)
		if err != nil {
			return fmt.Errorf("failed to encode greeks: %w", err)
		}
		greeks = sql.NullString{String: string(data), Valid: true}
	}

	// Seeds are full uint64 values, which SQLite INTEGER cannot hold.
	seed := strconv.FormatUint(run.Seed, 10)

	err := retryBusy(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, timestamp, model, option_type, spot, strike, maturity, rate, volatility, price, greeks, std_error, samples, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Timestamp.UTC(), string(run.Model), string(run.OptionType),
		run.Params.Spot, run.Params.Strike, run.Params.Maturity, run.Params.Rate, run.Params.Volatility,
		run.Price, greeks, run.StdError, run.Samples, seed)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w: %v", perrors.ErrDatabaseError, err)
	}
	return nil
}

const runColumns = "id, timestamp, model, option_type, spot, strike, maturity, rate, volatility, price, greeks, std_error, samples, seed"

// GetRun returns a single run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, perrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRuns returns runs matching filter, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	args := []interface{}{}

	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, string(filter.Model))
	}
	if filter.OptionType != "" {
		query += " AND option_type = ?"
		args = append(args, string(filter.OptionType))
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// DeleteRunsBefore removes runs older than before and returns how many were deleted.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error) {
	var res sql.Result
	err := retryBusy(ctx, s.retry, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, "DELETE FROM runs WHERE timestamp < ?", before.UTC())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		r          models.Run
		model      string
		optionType string
		greeks     sql.NullString
		stdErr     sql.NullFloat64
		samples    sql.NullInt64
		seed       sql.NullString
	)

	err := row.Scan(&r.ID, &r.Timestamp, &model, &optionType,
		&r.Params.Spot, &r.Params.Strike, &r.Params.Maturity, &r.Params.Rate, &r.Params.Volatility,
		&r.Price, &greeks, &stdErr, &samples, &seed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	r.Model = models.PricingModel(model)
	r.OptionType = models.OptionType(optionType)
	r.StdError = stdErr.Float64
	r.Samples = int(samples.Int64)

	if greeks.Valid && greeks.String != "" {
		var g models.OptionGreeks
		if err := json.Unmarshal([]byte(greeks.String), &g); err != nil {
			return nil, fmt.Errorf("failed to decode greeks: %w", err)
		}
		r.Greeks = &g
	}
	if seed.Valid && seed.String != "" {
		v, err := strconv.ParseUint(seed.String, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode seed: %w", err)
		}
		r.Seed = v
	}

	return &r, nil
}
