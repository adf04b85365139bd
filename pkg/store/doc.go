// Package store provides the SQLite-backed inventory store: one table
// per resource kind with soft-delete audit columns, generic
// mapping-driven persistence helpers used by the synchronizers, named
// time-bounded locks for scheduled jobs, sweep execution records and
// cached health verdicts.
package store
