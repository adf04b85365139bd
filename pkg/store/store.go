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

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite-backed inventory store.
type Store struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New creates a new store instance. Init must be called before use.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &Store{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Connection-level setting, enforced explicitly.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded source.
func (s *Store) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// DB exposes the underlying handle for the generic persistence helpers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginTx starts a serializable write transaction.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// ---------------------------------------------------------------------------
// Locks

// AcquireLock takes the named lock for owner with the given lease. It
// returns false without error when another owner holds an unexpired
// lease; the caller is expected to skip its run, not wait.
func (s *Store) AcquireLock(ctx context.Context, name, owner string, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO locks (name, owner, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE locks.expires_at <= excluded.acquired_at
	`

	result, err := s.db.ExecContext(ctx, query, name, owner, now, now.Add(lease))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ReleaseLock releases the named lock if still held by owner. Releasing
// a lock that expired and was re-acquired by someone else is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM locks WHERE name = ? AND owner = ?", name, owner)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sweeps

// SweepStatus represents the lifecycle state of one IDC sweep.
type SweepStatus string

const (
	SweepStatusPending        SweepStatus = "pending"
	SweepStatusRegionsSynced  SweepStatus = "regions_synced"
	SweepStatusProjectsSynced SweepStatus = "projects_synced"
	SweepStatusResourceSync   SweepStatus = "resource_sync"
	SweepStatusCleanup        SweepStatus = "cleanup"
	SweepStatusHealthCheck    SweepStatus = "health_check"
	SweepStatusDone           SweepStatus = "done"
	SweepStatusFailed         SweepStatus = "failed"
)

// Sweep is one recorded sweep execution.
type Sweep struct {
	ID          string
	IDC         string
	Status      SweepStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       *string
	Summary     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateSweep inserts a new sweep record.
func (s *Store) CreateSweep(ctx context.Context, sw *Sweep) error {
	query := `
		INSERT INTO sweeps (id, idc, status, started_at, completed_at, error, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sw.ID, sw.IDC, sw.Status, sw.StartedAt, sw.CompletedAt,
		sw.Error, sw.Summary, sw.CreatedAt, sw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sweep: %w", err)
	}
	return nil
}

// UpdateSweepStatus advances a sweep to a new state. Terminal states
// stamp completed_at; errMsg and summary overwrite only when non-nil.
func (s *Store) UpdateSweepStatus(ctx context.Context, id string, status SweepStatus, errMsg *string, summary *string) error {
	var completedAt *time.Time
	if status == SweepStatusDone || status == SweepStatusFailed {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `
		UPDATE sweeps
		SET status = ?,
		    completed_at = COALESCE(?, completed_at),
		    error = COALESCE(?, error),
		    summary = COALESCE(?, summary),
		    updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		status, completedAt, errMsg, summary, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sweep status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sweep not found: %s", id)
	}
	return nil
}

// GetSweep retrieves a sweep by ID.
func (s *Store) GetSweep(ctx context.Context, id string) (*Sweep, error) {
	query := `
		SELECT id, idc, status, started_at, completed_at, error, summary, created_at, updated_at
		FROM sweeps
		WHERE id = ?
	`
	sw := &Sweep{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sw.ID, &sw.IDC, &sw.Status, &sw.StartedAt, &sw.CompletedAt,
		&sw.Error, &sw.Summary, &sw.CreatedAt, &sw.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sweep not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}
	return sw, nil
}

// ListSweeps lists recent sweeps for an IDC, newest first. An empty idc
// lists across all IDCs.
func (s *Store) ListSweeps(ctx context.Context, idc string, limit int) ([]*Sweep, error) {
	query := `
		SELECT id, idc, status, started_at, completed_at, error, summary, created_at, updated_at
		FROM sweeps
		WHERE (? = '' OR idc = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, idc, idc, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	defer rows.Close()

	sweeps := []*Sweep{}
	for rows.Next() {
		sw := &Sweep{}
		if err := rows.Scan(
			&sw.ID, &sw.IDC, &sw.Status, &sw.StartedAt, &sw.CompletedAt,
			&sw.Error, &sw.Summary, &sw.CreatedAt, &sw.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		sweeps = append(sweeps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweeps: %w", err)
	}
	return sweeps, nil
}

// ---------------------------------------------------------------------------
// Health status

// HealthStatus is a cached control-plane health verdict for one IDC.
type HealthStatus struct {
	IDC       string
	Healthy   bool
	Detail    string
	CheckedAt time.Time
	ExpiresAt time.Time
}

// SetHealthStatus records the latest health verdict with a TTL.
func (s *Store) SetHealthStatus(ctx context.Context, hs *HealthStatus) error {
	query := `
		INSERT INTO health_status (idc, healthy, detail, checked_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(idc) DO UPDATE SET
			healthy = excluded.healthy,
			detail = excluded.detail,
			checked_at = excluded.checked_at,
			expires_at = excluded.expires_at
	`
	_, err := s.db.ExecContext(ctx, query,
		hs.IDC, hs.Healthy, hs.Detail, hs.CheckedAt, hs.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to set health status: %w", err)
	}
	return nil
}

// GetHealthStatus returns the cached verdict for an IDC, or nil when
// none exists or the cached value expired.
func (s *Store) GetHealthStatus(ctx context.Context, idc string) (*HealthStatus, error) {
	query := `
		SELECT idc, healthy, detail, checked_at, expires_at
		FROM health_status
		WHERE idc = ? AND expires_at > ?
	`
	hs := &HealthStatus{}
	err := s.db.QueryRowContext(ctx, query, idc, time.Now().UTC()).Scan(
		&hs.IDC, &hs.Healthy, &hs.Detail, &hs.CheckedAt, &hs.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return hs, nil
}

// ---------------------------------------------------------------------------
// Apps

// AppAliases loads the application alias map, lowercased alias to app ID.
func (s *Store) AppAliases(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, alias FROM apps")
	if err != nil {
		return nil, fmt.Errorf("failed to load app aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[string]int64)
	for rows.Next() {
		var id int64
		var alias string
		if err := rows.Scan(&id, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan app alias: %w", err)
		}
		aliases[strings.ToLower(alias)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating app aliases: %w", err)
	}
	return aliases, nil
}

// ---------------------------------------------------------------------------
// Servers

// UpdateServerIPs backfills server IP addresses discovered during port
// sync. Rows already carrying the address are left untouched so
// updated_at stays meaningful. Returns the number of rows changed.
func (s *Store) UpdateServerIPs(ctx context.Context, ips map[string]string) (int64, error) {
	if len(ips) == 0 {
		return 0, nil
	}

	query := `
		UPDATE servers
		SET ip_address = ?, updated_at = ?
		WHERE id = ? AND ip_address <> ? AND deleted_at IS NULL
	`

	var changed int64
	now := time.Now().UTC()
	for serverID, ip := range ips {
		result, err := s.db.ExecContext(ctx, query, ip, now, serverID, ip)
		if err != nil {
			return changed, fmt.Errorf("failed to backfill server ip: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return changed, fmt.Errorf("failed to get rows affected: %w", err)
		}
		changed += n
	}
	return changed, nil
}

// ---------------------------------------------------------------------------
// Retention cleanup

// PurgeSoftDeleted physically removes rows from table whose soft-delete
// timestamp is older than before. Returns the number of rows removed.
func (s *Store) PurgeSoftDeleted(ctx context.Context, table string, before time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE deleted_at IS NOT NULL AND deleted_at <= ?", table)
	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
