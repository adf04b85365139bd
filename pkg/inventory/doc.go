// Package inventory implements the reconciliation core: the generic
// diff engine, the per-kind synchronizers, the sweep orchestrator and
// the periodic scheduler.
//
// A sweep reconciles one IDC end to end: regions and projects first,
// then a fixed chain of resource synchronizers per region with bounded
// concurrency across regions, followed by retention cleanup and a
// health probe. Orphaned records are soft-deleted and purged after the
// retention window; junction records are hard-deleted.
package inventory
