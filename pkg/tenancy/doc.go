// Package tenancy enforces organization and department boundaries.
//
// The Guard answers one question: may this identity act inside this
// organization (and optionally this department) right now? It always
// consults the profile store's membership records rather than trusting a
// presented claims snapshot, so security-sensitive operations stay correct
// even when a snapshot is stale.
//
// One self-heal is built in: an organization's recorded creator who has no
// membership row yet gets an owner membership materialized on first check.
// This covers organizations created before membership rows existed and
// creators whose bootstrap write was interrupted.
package tenancy
