package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

// validate checks remote listing items against their struct tags before
// they reach the diff. One shared instance; the validator caches struct
// metadata internally.
var validate = validator.New()

// Summary reports what one synchronizer run wrote.
type Summary struct {
	Kind     string   `json:"kind"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	Rejected int      `json:"rejected"`
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Summary) String() string {
	return fmt.Sprintf("%s: inserted=%d updated=%d deleted=%d rejected=%d",
		s.Kind, s.Inserted, s.Updated, s.Deleted, s.Rejected)
}

// merge folds counts from another summary of the same pass, used by
// synchronizers that run several diffs (ports, volumes).
func (s *Summary) merge(other *Summary) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Deleted += other.Deleted
	s.Rejected += other.Rejected
	s.Warnings = append(s.Warnings, other.Warnings...)
}

// RegionContext carries everything a region-scoped synchronizer needs
// for one run.
type RegionContext struct {
	IDC    string
	Region *Region
	Client remote.Client
}

// Synchronizer reconciles one resource kind for one region. A returned
// error halts the region's remaining chain; the other regions of the
// sweep are unaffected.
type Synchronizer interface {
	Kind() string
	Sync(ctx context.Context, rc *RegionContext) (*Summary, error)
}

// ErrorClass buckets failures for metrics and logs.
func ErrorClass(err error) string {
	var re *remote.Error
	if errors.As(err, &re) {
		return string(re.Kind)
	}
	return "internal"
}

// syncKind runs the standard reconcile pass for one kind: snapshot the
// scope, diff against the remote listing, apply the changeset in one
// transaction.
func syncKind[T any, R any](ctx context.Context, st *store.Store, m store.Mapping[T], spec DiffSpec[T, R], scope string, items []R) (*Summary, error) {
	local, err := store.Snapshot(ctx, st.DB(), m, scope)
	if err != nil {
		return nil, err
	}

	cs := Diff(spec, local, items)
	if err := applyChangeset(ctx, st, m, cs); err != nil {
		return nil, err
	}
	return summarize(spec.Kind, cs), nil
}

// applyChangeset writes a changeset atomically.
func applyChangeset[T any](ctx context.Context, st *store.Store, m store.Mapping[T], cs *Changeset[T]) error {
	if cs.Empty() {
		return nil
	}

	tx, err := st.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := store.BulkInsert(ctx, tx, m, cs.Inserts); err != nil {
		return err
	}
	if err := store.BulkUpdate(ctx, tx, m, cs.Updates); err != nil {
		return err
	}
	if err := store.DeleteOrphans(ctx, tx, m, cs.Orphans); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit changeset: %w", err)
	}
	return nil
}

func summarize[T any](kind string, cs *Changeset[T]) *Summary {
	return &Summary{
		Kind:     kind,
		Inserted: len(cs.Inserts),
		Updated:  len(cs.Updates),
		Deleted:  len(cs.Orphans),
		Rejected: cs.Rejected,
		Warnings: cs.Warnings,
	}
}

// strPtr maps an empty remote string to NULL.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// intPtr widens an optional remote int.
func intPtr(p *int) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}
