package inventory

import (
	"fmt"
	"sort"
)

// Field describes one synced attribute of a record: how to compare it
// between the stored and the freshly mapped version, and how to carry
// the new value onto the stored record. The per-kind field tables are
// the single place that defines what "changed" means for a kind.
type Field[T any] struct {
	Name  string
	Equal func(a, b *T) bool
	Copy  func(dst, src *T)
}

// FieldOf builds a Field for a directly comparable attribute.
func FieldOf[T any, V comparable](name string, get func(*T) V, set func(*T, V)) Field[T] {
	return Field[T]{
		Name:  name,
		Equal: func(a, b *T) bool { return get(a) == get(b) },
		Copy:  func(dst, src *T) { set(dst, get(src)) },
	}
}

// PtrFieldOf builds a Field for a nullable attribute. Two nils are
// equal; nil and non-nil are not.
func PtrFieldOf[T any, V comparable](name string, get func(*T) *V, set func(*T, *V)) Field[T] {
	return Field[T]{
		Name: name,
		Equal: func(a, b *T) bool {
			pa, pb := get(a), get(b)
			if pa == nil || pb == nil {
				return pa == pb
			}
			return *pa == *pb
		},
		Copy: func(dst, src *T) { set(dst, get(src)) },
	}
}

// DiffSpec binds a remote listing item type R to a local record type T:
// how to map an item into a record and which fields participate in
// change detection.
type DiffSpec[T any, R any] struct {
	Kind   string
	ID     func(*T) string
	Map    func(R) (*T, error)
	Fields []Field[T]
}

// Changeset is the outcome of one diff pass. Rejected counts remote
// items dropped by mapping validation; they also appear in Warnings.
type Changeset[T any] struct {
	Inserts  []*T
	Updates  []*T
	Orphans  []string
	Warnings []string
	Rejected int
}

// Empty reports whether the changeset carries no writes.
func (c *Changeset[T]) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0 && len(c.Orphans) == 0
}

// Diff computes the changes needed to make the local snapshot match the
// remote listing. Single pass over the remote items: each mapped item
// pops its local counterpart, field tables decide whether the popped
// record needs an update, and whatever stays in the snapshot afterwards
// is an orphan.
//
// Malformed items (Map returns an error) are recorded as warnings and
// skipped. A skipped item does not pop its local record, so a
// persistently malformed listing entry will eventually orphan its local
// counterpart; that is preferable to keeping stale attributes alive.
// Duplicate remote IDs keep the first occurrence.
//
// Diff consumes the local map; callers must not reuse it.
func Diff[T any, R any](spec DiffSpec[T, R], local map[string]*T, remote []R) *Changeset[T] {
	cs := &Changeset[T]{}
	seen := make(map[string]struct{}, len(remote))

	for _, item := range remote {
		rec, err := spec.Map(item)
		if err != nil {
			cs.Rejected++
			cs.Warnings = append(cs.Warnings,
				fmt.Sprintf("%s: rejected remote item: %v", spec.Kind, err))
			continue
		}

		id := spec.ID(rec)
		if _, dup := seen[id]; dup {
			cs.Warnings = append(cs.Warnings,
				fmt.Sprintf("%s: duplicate remote id %s ignored", spec.Kind, id))
			continue
		}
		seen[id] = struct{}{}

		existing, ok := local[id]
		if !ok {
			cs.Inserts = append(cs.Inserts, rec)
			continue
		}
		delete(local, id)

		changed := false
		for _, f := range spec.Fields {
			if !f.Equal(existing, rec) {
				f.Copy(existing, rec)
				changed = true
			}
		}
		if changed {
			cs.Updates = append(cs.Updates, existing)
		}
	}

	cs.Orphans = make([]string, 0, len(local))
	for id := range local {
		cs.Orphans = append(cs.Orphans, id)
	}
	sort.Strings(cs.Orphans)

	return cs
}
