// Package identity defines the authoritative Profile Store records for the
// authorization engine: Identity, Organization, and Membership documents plus
// their migration audit fields.
//
// # Overview
//
// The Profile Store is the source of truth for an actor's role, tenancy, and
// custom permission grants. Cached claims snapshots (pkg/claims) are derived
// from these records and may lag behind them by one provider-refresh interval;
// every read in this package goes to the database, never to an in-process
// cache.
//
// Identity is an explicit value object with named fields only. Every write of
// claims-bearing fields recomputes all derived boolean flags from the role
// alone and bumps the document's claims version; unknown keys are never
// carried forward.
//
// # Store
//
// The Store interface exposes per-document reads and atomic per-document
// writes. No cross-document transactions are offered: the migration engine is
// built to keep partial failure local, and per-document serialization is the
// only ordering the store guarantees.
//
// # Related Packages
//
//   - pkg/claimsync: the sole writer of role, tenancy, and permission fields
//   - pkg/tenancy: membership re-validation at the point of use
//   - pkg/migration: legacy role rewriting over these records
package identity
