// Package stores persists the run journal: one row per reconciliation run and
// one per executed step. The journal is an audit trail; reconciliation never
// reads it back.
package stores
