// Package claims defines the claims snapshot that travels with a user's
// session and the storage behind it.
//
// A ClaimsSnapshot is a denormalized copy of the authorization fields held
// by the profile store: role, account type, tenancy identifiers, custom
// permission grants, capability flags, and a monotonically increasing
// claims version. The snapshot exists so that request handling can make
// authorization decisions without a profile store round trip.
//
// The package provides two transport forms for a snapshot:
//
//   - Codec encodes a snapshot as a signed JWT for presentation by clients.
//   - Provider stores the current snapshot per user in Redis so that
//     server-side checks can compare a presented snapshot against the
//     freshest known claims.
//
// Snapshots are written only by the claims synchronizer, and always after
// the profile store write that they mirror has succeeded. Readers must
// treat a snapshot whose version trails the profile store as stale.
package claims
