// Package claimsync keeps the profile store and the identity provider's
// claims snapshots consistent.
//
// The Synchronizer is the sole writer of an identity's role, account type,
// tenancy identifiers, and custom permission grants, and of the claims
// snapshot derived from them. Every mutation follows the same discipline:
//
//  1. Validate the request, and judge the acting party's authority by its
//     stored profile and membership records. The presented snapshot only
//     names the actor; a stale token grants nothing its record no longer
//     backs.
//  2. Write the profile store document (the source of truth). The write
//     bumps the document's claims version.
//  3. Write the claims snapshot carrying that version to the provider.
//
// The ordering is an invariant. A failed profile write is never followed
// by a claims write. A failed claims write after a committed profile write
// leaves a safe-but-stale snapshot: the stored claims describe an older,
// previously valid state, and the version gap makes the staleness
// detectable by the tenancy guard.
//
// The migration engine uses the administrative ApplyRole path, which skips
// the acting party's seniority check but keeps the write ordering and flag
// recomputation.
package claimsync
