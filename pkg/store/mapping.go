package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBTX abstracts *sql.DB and *sql.Tx so persistence helpers run either
// standalone or inside a synchronizer's write transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Mapping describes how one resource kind persists: its table, its
// column set and how a record converts to and from a row. The column
// list is the explicit contract for what a sync pass owns; audit
// columns (created_at, updated_at, deleted_at) are managed here, never
// by synchronizers.
type Mapping[T any] struct {
	// Table is the backing table name.
	Table string

	// ScopeCol is the scoping column (region_id, or idc for the
	// IDC-level kinds). Snapshots and orphan handling are always
	// bounded by this column.
	ScopeCol string

	// Cols lists every synced column, "id" first. Args must return
	// values in the same order; Scan must read them in the same order.
	Cols []string

	// HardDelete marks kinds whose orphans are physically removed
	// (junction records) instead of soft-deleted.
	HardDelete bool

	// ID extracts the primary key.
	ID func(*T) string

	// Args converts a record to column values, in Cols order.
	Args func(*T) []any

	// Scan builds a record from a row, in Cols order.
	Scan func(scan func(dest ...any) error) (*T, error)
}

// Snapshot loads all live records for one scope keyed by ID. Soft-
// deleted rows are excluded on purpose: a remote ID that reappears
// after deletion is handled by the insert path, not resurrected here.
func Snapshot[T any](ctx context.Context, db DBTX, m Mapping[T], scope string) (map[string]*T, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE deleted_at IS NULL AND %s = ?",
		strings.Join(m.Cols, ", "), m.Table, m.ScopeCol,
	)

	rows, err := db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", m.Table, err)
	}
	defer rows.Close()

	out := make(map[string]*T)
	for rows.Next() {
		rec, err := m.Scan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", m.Table, err)
		}
		out[m.ID(rec)] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", m.Table, err)
	}
	return out, nil
}

// BulkInsert writes new records. The upsert clause implements the
// revive policy: a soft-deleted row whose remote ID reappears is
// overwritten in place with deleted_at cleared.
func BulkInsert[T any](ctx context.Context, db DBTX, m Mapping[T], recs []*T) error {
	if len(recs) == 0 {
		return nil
	}

	assigns := make([]string, 0, len(m.Cols)-1)
	for _, col := range m.Cols[1:] {
		assigns = append(assigns, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	assigns = append(assigns, "deleted_at = NULL", "updated_at = excluded.updated_at")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		m.Table,
		strings.Join(m.Cols, ", "),
		placeholders(len(m.Cols)+2),
		strings.Join(assigns, ", "),
	)

	now := time.Now().UTC()
	for _, rec := range recs {
		args := append(m.Args(rec), now, now)
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", m.Table, err)
		}
	}
	return nil
}

// BulkUpdate overwrites the synced columns of existing records and
// stamps updated_at.
func BulkUpdate[T any](ctx context.Context, db DBTX, m Mapping[T], recs []*T) error {
	if len(recs) == 0 {
		return nil
	}

	assigns := make([]string, 0, len(m.Cols)-1)
	for _, col := range m.Cols[1:] {
		assigns = append(assigns, col+" = ?")
	}
	assigns = append(assigns, "updated_at = ?")

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ?",
		m.Table, strings.Join(assigns, ", "),
	)

	now := time.Now().UTC()
	for _, rec := range recs {
		args := m.Args(rec)
		args = append(args[1:], now, m.ID(rec))
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update %s: %w", m.Table, err)
		}
	}
	return nil
}

// DeleteOrphans removes records no longer present remotely: soft-
// delete by default, physical delete for junction kinds.
func DeleteOrphans[T any](ctx context.Context, db DBTX, m Mapping[T], ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+2)
	var query string
	if m.HardDelete {
		query = fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", m.Table, placeholders(len(ids)))
	} else {
		now := time.Now().UTC()
		query = fmt.Sprintf(
			"UPDATE %s SET deleted_at = ?, updated_at = ? WHERE id IN (%s)",
			m.Table, placeholders(len(ids)),
		)
		args = append(args, now, now)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete orphans from %s: %w", m.Table, err)
	}
	return nil
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
