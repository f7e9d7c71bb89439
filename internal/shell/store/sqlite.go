package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/appdeck/appdeck/internal/core/host"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Row Mapping
// =============================================================================

// hostRow represents a host row in the database.
type hostRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	Address      string  `db:"address"`
	Status       string  `db:"status"`
	Runtime      string  `db:"runtime"`
	ErrorMessage string  `db:"error_message"`
	LastSeenAt   *string `db:"last_seen_at"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
}

func toHostRow(h *host.Host) hostRow {
	row := hostRow{
		ID:           h.ID,
		Name:         h.Name,
		Address:      h.Address,
		Status:       string(h.Status),
		Runtime:      h.Runtime,
		ErrorMessage: h.ErrorMessage,
		CreatedAt:    h.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    h.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if h.LastSeenAt != nil {
		s := h.LastSeenAt.UTC().Format(time.RFC3339Nano)
		row.LastSeenAt = &s
	}
	return row
}

func (r hostRow) toHost() (host.Host, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return host.Host{}, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return host.Host{}, fmt.Errorf("parse updated_at: %w", err)
	}

	h := host.Host{
		ID:           r.ID,
		Name:         r.Name,
		Address:      r.Address,
		Status:       host.Status(r.Status),
		Runtime:      r.Runtime,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
	if r.LastSeenAt != nil && *r.LastSeenAt != "" {
		t, err := time.Parse(time.RFC3339Nano, *r.LastSeenAt)
		if err != nil {
			return host.Host{}, fmt.Errorf("parse last_seen_at: %w", err)
		}
		h.LastSeenAt = &t
	}
	return h, nil
}

// =============================================================================
// Host Operations
// =============================================================================

// CreateHost inserts a new host.
func (s *SQLiteStore) CreateHost(ctx context.Context, h *host.Host) error {
	row := toHostRow(h)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO hosts (id, name, address, status, runtime, error_message, last_seen_at, created_at, updated_at)
		VALUES (:id, :name, :address, :status, :runtime, :error_message, :last_seen_at, :created_at, :updated_at)`,
		row)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, h.ID)
		}
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

// GetHost fetches a host by id.
func (s *SQLiteStore) GetHost(ctx context.Context, id string) (*host.Host, error) {
	var row hostRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM hosts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: host %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get host: %w", err)
	}

	h, err := row.toHost()
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHost updates an existing host.
func (s *SQLiteStore) UpdateHost(ctx context.Context, h *host.Host) error {
	row := toHostRow(h)
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE hosts
		SET name = :name, address = :address, status = :status, runtime = :runtime,
		    error_message = :error_message, last_seen_at = :last_seen_at, updated_at = :updated_at
		WHERE id = :id`,
		row)
	if err != nil {
		return fmt.Errorf("update host: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update host: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: host %s", ErrNotFound, h.ID)
	}
	return nil
}

// DeleteHost removes a host by id.
func (s *SQLiteStore) DeleteHost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: host %s", ErrNotFound, id)
	}
	return nil
}

// ListHosts returns all hosts ordered by creation time.
func (s *SQLiteStore) ListHosts(ctx context.Context) ([]host.Host, error) {
	var rows []hostRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM hosts ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	hosts := make([]host.Host, 0, len(rows))
	for _, r := range rows {
		h, err := r.toHost()
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// isUniqueViolation checks for a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
