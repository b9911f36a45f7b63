// Package api exposes the authorization engine over RPC-style HTTP.
//
// Routes:
//
//	POST /authz/roles/{id}            assign a role
//	POST /authz/permissions/{id}      replace custom permission grants
//	POST /authz/tenancy/{id}          change account type / organization
//	POST /tenancy/verify              verify tenancy for a scope
//	POST /migration/organizations/{id} migrate one organization
//	POST /migration/organizations     migrate all organizations
//	POST /migration/users             migrate all independent users
//	GET  /migration/status            migration progress report
//
// Every route sits behind the claims middleware, which verifies the
// bearer token and attaches the decoded snapshot to the request context.
// The snapshot is advisory; handlers pass it to the engine, which
// re-validates against the profile store wherever the operation is
// security sensitive.
//
// Errors map to HTTP status by kind: unauthenticated 401, permission
// denied 403, invalid argument 400, not found 404, already exists and
// failed precondition 409, internal 500.
package api
