// Package audit records authorization-relevant events: role changes,
// permission grants, tenancy denials, and migration outcomes.
//
// Every mutation that flows through the claims synchronizer or the
// migration engine emits an audit event naming the actor, the target, and
// the outcome. Events are best effort: a failed audit write is logged but
// never fails the operation that produced it.
//
// Two logger implementations are provided. LogrusLogger emits events as
// structured log lines for environments without an audit table. DBLogger
// persists events to PostgreSQL for later review. MultiLogger fans out to
// both.
package audit
