package migration

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tasknest/tasknest/pkg/apperr"
	"github.com/tasknest/tasknest/pkg/audit"
	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/claimsync"
	"github.com/tasknest/tasknest/pkg/identity"
	"github.com/tasknest/tasknest/pkg/observability"
)

// defaultConcurrency bounds how many organizations migrate in parallel.
// Each organization's member loop stays sequential.
const defaultConcurrency = 4

// Outcome is the terminal state of one record's migration pass.
type Outcome string

const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// MemberResult reports one membership's migration outcome.
type MemberResult struct {
	UserID  string     `json:"userId"`
	Role    authz.Role `json:"role,omitempty"`
	Outcome Outcome    `json:"outcome"`
	Error   string     `json:"error,omitempty"`
}

// OrganizationResult reports one organization's migration pass.
type OrganizationResult struct {
	OrganizationID string         `json:"organizationId"`
	MigratedCount  int            `json:"migratedCount"`
	Members        []MemberResult `json:"perMemberResults"`
	Error          string         `json:"error,omitempty"`
}

// UserResult reports one independent user's migration outcome.
type UserResult struct {
	UserID  string     `json:"userId"`
	Role    authz.Role `json:"role,omitempty"`
	Outcome Outcome    `json:"outcome"`
	Error   string     `json:"error,omitempty"`
}

// BatchResult reports a collection-level migration run.
type BatchResult struct {
	TotalEntities int                  `json:"totalEntities"`
	Organizations []OrganizationResult `json:"organizations,omitempty"`
	Users         []UserResult         `json:"users,omitempty"`
}

// EntityStatus is one entity's line in the status report.
type EntityStatus struct {
	ID         string     `json:"id"`
	Migrated   bool       `json:"migrated"`
	MigratedAt *time.Time `json:"migratedAt,omitempty"`
}

// StatusReport aggregates migration progress across all entities.
type StatusReport struct {
	OrganizationsTotal    int            `json:"organizationsTotal"`
	OrganizationsMigrated int            `json:"organizationsMigrated"`
	UsersTotal            int            `json:"usersTotal"`
	UsersMigrated         int            `json:"usersMigrated"`
	Organizations         []EntityStatus `json:"organizations"`
	Users                 []EntityStatus `json:"users"`
}

// Engine batch-converts legacy role representations.
type Engine struct {
	store       identity.Store
	sync        *claimsync.Synchronizer
	auditor     audit.Logger
	metrics     *observability.Metrics
	log         *logrus.Logger
	concurrency int
}

// NewEngine creates a migration engine.
func NewEngine(store identity.Store, sync *claimsync.Synchronizer, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		store:       store,
		sync:        sync,
		auditor:     audit.NopLogger{},
		log:         log,
		concurrency: defaultConcurrency,
	}
}

// WithAudit attaches an audit logger.
func (e *Engine) WithAudit(a audit.Logger) *Engine {
	e.auditor = a
	return e
}

// WithMetrics attaches engine metrics.
func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// WithConcurrency bounds parallel organization migrations.
func (e *Engine) WithConcurrency(n int) *Engine {
	if n > 0 {
		e.concurrency = n
	}
	return e
}

// MigrateOrganization migrates every membership under one organization.
// Only the system owner may run migrations. Per-member failures are
// recorded and never abort the pass; the organization is marked migrated
// unconditionally afterwards so the caller can retry just the failures.
func (e *Engine) MigrateOrganization(ctx context.Context, orgID string, acting *claims.Snapshot) (*OrganizationResult, error) {
	if err := e.requireSystemOwner(acting); err != nil {
		return nil, err
	}
	if _, err := e.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	result := e.migrateOrganization(ctx, orgID, acting.UserID)
	if result.Error != "" {
		return result, apperr.Internal(nil, "organization %s migration pass failed: %s", orgID, result.Error)
	}
	return result, nil
}

func (e *Engine) migrateOrganization(ctx context.Context, orgID, actorID string) *OrganizationResult {
	result := &OrganizationResult{OrganizationID: orgID}

	members, err := e.store.ListMemberships(ctx, orgID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for _, m := range members {
		outcome := e.migrateMember(ctx, m, actorID)
		result.Members = append(result.Members, outcome)
		if outcome.Outcome == OutcomeMigrated {
			result.MigratedCount++
		}
	}

	// Marked migrated even with partial member failures; the per-member
	// results carry what is left to retry.
	if err := e.store.MarkOrganizationMigrated(ctx, orgID, actorID); err != nil {
		result.Error = err.Error()
	}

	e.recordEntity("organization", OutcomeMigrated)
	e.audit(ctx, audit.NewEvent(audit.EventTypeMigrationOrganization, audit.EventStatusSuccess, actorID, orgID).
		WithOrganization(orgID).
		WithMetadata("members", len(result.Members)).
		WithMetadata("migrated", result.MigratedCount))
	e.log.WithFields(logrus.Fields{
		"organization_id": orgID,
		"members":         len(result.Members),
		"migrated":        result.MigratedCount,
	}).Info("organization migration pass complete")
	return result
}

// migrateMember converts one membership's legacy representation. Member
// identities live in an organization context, so the owner flag resolves
// to the organization owner role here.
func (e *Engine) migrateMember(ctx context.Context, m *identity.Membership, actorID string) MemberResult {
	if m.Migrated {
		e.recordEntity("member", OutcomeSkipped)
		return MemberResult{UserID: m.UserID, Role: m.Role, Outcome: OutcomeSkipped}
	}

	role := UnifiedRole(membershipLegacy(m), identity.AccountOrganization)

	if _, err := e.sync.ApplyRole(ctx, m.UserID, role, actorID); err != nil {
		e.recordEntity("member", OutcomeFailed)
		e.audit(ctx, audit.NewEvent(audit.EventTypeMigrationMember, audit.EventStatusFailure, actorID, m.UserID).
			WithOrganization(m.OrganizationID).WithError(err))
		e.log.WithError(err).WithFields(logrus.Fields{
			"user_id":         m.UserID,
			"organization_id": m.OrganizationID,
		}).Warn("member migration failed")
		return MemberResult{UserID: m.UserID, Outcome: OutcomeFailed, Error: err.Error()}
	}

	if err := e.store.UpdateMembershipRole(ctx, m.OrganizationID, m.UserID, role); err != nil {
		e.recordEntity("member", OutcomeFailed)
		return MemberResult{UserID: m.UserID, Outcome: OutcomeFailed, Error: err.Error()}
	}
	if err := e.store.MarkMembershipMigrated(ctx, m.OrganizationID, m.UserID, actorID); err != nil {
		e.recordEntity("member", OutcomeFailed)
		return MemberResult{UserID: m.UserID, Outcome: OutcomeFailed, Error: err.Error()}
	}

	e.recordEntity("member", OutcomeMigrated)
	e.audit(ctx, audit.NewEvent(audit.EventTypeMigrationMember, audit.EventStatusSuccess, actorID, m.UserID).
		WithOrganization(m.OrganizationID).WithMetadata("role", string(role)))
	return MemberResult{UserID: m.UserID, Role: role, Outcome: OutcomeMigrated}
}

// MigrateAllOrganizations migrates every organization not yet marked
// migrated. Organizations are independent subtrees, so they run in
// parallel under a bounded group; failures stay local to their entity.
func (e *Engine) MigrateAllOrganizations(ctx context.Context, acting *claims.Snapshot) (*BatchResult, error) {
	if err := e.requireSystemOwner(acting); err != nil {
		return nil, err
	}

	start := time.Now()
	orgs, err := e.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{TotalEntities: len(orgs)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, org := range orgs {
		if org.Migrated {
			mu.Lock()
			result.Organizations = append(result.Organizations, OrganizationResult{OrganizationID: org.ID})
			mu.Unlock()
			e.recordEntity("organization", OutcomeSkipped)
			continue
		}
		orgID := org.ID
		g.Go(func() error {
			r := e.migrateOrganization(gctx, orgID, acting.UserID)
			mu.Lock()
			result.Organizations = append(result.Organizations, *r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.MigrationRunDuration.WithLabelValues("migrateAllOrganizations").Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// MigrateAllIndependentUsers migrates every individual-account identity
// not yet marked migrated. Without organization context, an owner flag
// resolves to the system owner role.
func (e *Engine) MigrateAllIndependentUsers(ctx context.Context, acting *claims.Snapshot) (*BatchResult, error) {
	if err := e.requireSystemOwner(acting); err != nil {
		return nil, err
	}

	start := time.Now()
	idents, err := e.store.ListIndependentIdentities(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{TotalEntities: len(idents)}
	for _, ident := range idents {
		result.Users = append(result.Users, e.migrateIndependent(ctx, ident, acting.UserID))
	}

	if e.metrics != nil {
		e.metrics.MigrationRunDuration.WithLabelValues("migrateAllIndependentUsers").Observe(time.Since(start).Seconds())
	}
	return result, nil
}

func (e *Engine) migrateIndependent(ctx context.Context, ident *identity.Identity, actorID string) UserResult {
	if ident.Migrated {
		e.recordEntity("user", OutcomeSkipped)
		return UserResult{UserID: ident.ID, Role: ident.Role, Outcome: OutcomeSkipped}
	}

	role := UnifiedRole(identityLegacy(ident), identity.AccountIndividual)

	if _, err := e.sync.ApplyRole(ctx, ident.ID, role, actorID); err != nil {
		e.recordEntity("user", OutcomeFailed)
		e.audit(ctx, audit.NewEvent(audit.EventTypeMigrationIndependent, audit.EventStatusFailure, actorID, ident.ID).WithError(err))
		return UserResult{UserID: ident.ID, Outcome: OutcomeFailed, Error: err.Error()}
	}
	if err := e.store.MarkIdentityMigrated(ctx, ident.ID, actorID); err != nil {
		e.recordEntity("user", OutcomeFailed)
		return UserResult{UserID: ident.ID, Outcome: OutcomeFailed, Error: err.Error()}
	}

	e.recordEntity("user", OutcomeMigrated)
	e.audit(ctx, audit.NewEvent(audit.EventTypeMigrationIndependent, audit.EventStatusSuccess, actorID, ident.ID).
		WithMetadata("role", string(role)))
	return UserResult{UserID: ident.ID, Role: role, Outcome: OutcomeMigrated}
}

// CheckMigrationStatus reports migration progress without mutating state.
func (e *Engine) CheckMigrationStatus(ctx context.Context, acting *claims.Snapshot) (*StatusReport, error) {
	if err := e.requireSystemOwner(acting); err != nil {
		return nil, err
	}

	orgs, err := e.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	idents, err := e.store.ListIndependentIdentities(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		OrganizationsTotal: len(orgs),
		UsersTotal:         len(idents),
		Organizations:      make([]EntityStatus, 0, len(orgs)),
		Users:              make([]EntityStatus, 0, len(idents)),
	}
	for _, org := range orgs {
		if org.Migrated {
			report.OrganizationsMigrated++
		}
		report.Organizations = append(report.Organizations, EntityStatus{ID: org.ID, Migrated: org.Migrated, MigratedAt: org.MigratedAt})
	}
	for _, ident := range idents {
		if ident.Migrated {
			report.UsersMigrated++
		}
		report.Users = append(report.Users, EntityStatus{ID: ident.ID, Migrated: ident.Migrated, MigratedAt: ident.MigratedAt})
	}
	return report, nil
}

func (e *Engine) requireSystemOwner(acting *claims.Snapshot) error {
	if acting == nil {
		return apperr.Unauthenticated("no acting identity")
	}
	if acting.Role != authz.RoleSystemOwner {
		return apperr.PermissionDenied("migration requires the %s role", authz.RoleSystemOwner)
	}
	return nil
}

func (e *Engine) recordEntity(entityType string, outcome Outcome) {
	if e.metrics != nil {
		e.metrics.RecordMigrationEntity(entityType, string(outcome))
	}
}

func (e *Engine) audit(ctx context.Context, event *audit.Event) {
	if err := e.auditor.Log(ctx, event); err != nil {
		e.log.WithError(err).Warn("audit write failed")
	}
}
