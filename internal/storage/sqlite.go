// Package storage is the guest and reservation store, backed by SQLite.
//
// Every mutating operation runs in its own transaction; a validation or
// reference failure rolls back without partial writes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"temporada/internal/core"
	applog "temporada/internal/log"
)

// Options tunes store behaviour that depends on configuration.
type Options struct {
	// CountryCode is prefixed onto national phone numbers.
	CountryCode string
	// AllowOverlap disables the double-booking check.
	AllowOverlap bool
	Logger       *applog.Logger
}

type SQLiteRepository struct {
	db     *sqlx.DB
	opts   Options
	logger *applog.Logger
	now    func() time.Time
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string, opts Options) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps transactions free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	return &SQLiteRepository{
		db:     db,
		opts:   opts,
		logger: logger.WithComponent(applog.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (s *SQLiteRepository) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteRepository) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats are row counts exposed on the metrics endpoint.
type Stats struct {
	Guests        int64 `db:"guests"`
	Reservations  int64 `db:"reservations"`
	Notifications int64 `db:"notifications"`
}

func (s *SQLiteRepository) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `SELECT
		(SELECT COUNT(*) FROM guests) AS guests,
		(SELECT COUNT(*) FROM reservations) AS reservations,
		(SELECT COUNT(*) FROM notifications) AS notifications`)
	if err != nil {
		return Stats{}, fmt.Errorf("count rows: %w", err)
	}
	return st, nil
}

// withTx runs fn in a transaction, committing only when fn returns nil.
func (s *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

// mapConstraint turns SQLite constraint failures that slipped past domain
// validation into ValidationError.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "CHECK constraint failed"):
		return &core.ValidationError{Message: "dados inválidos: " + msg}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &core.ConflictError{Entity: "registro", Reason: "referência inválida"}
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
