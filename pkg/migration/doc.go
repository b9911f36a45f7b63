// Package migration rewrites legacy role representations into the unified
// role enumeration.
//
// Legacy records carry a boolean owner flag, a boolean admin flag, and a
// freeform role string. The unified role is derived with a fixed
// precedence: owner flag, then admin flag, then a recognized role string,
// then a scope-aware default. An owner flag inside an organization context
// resolves to the organization owner role, never the system owner role;
// legacy data conflates "owner" across both scopes and the asymmetry is
// deliberate.
//
// The engine migrates one organization, all organizations, or all
// independent users. Failures are isolated per record: a member whose
// write fails is reported and the batch continues. Entities already marked
// migrated are skipped, so reruns are no-ops for completed entities and
// retries for failed ones. There are no cross-document transactions
// anywhere in the engine.
package migration
