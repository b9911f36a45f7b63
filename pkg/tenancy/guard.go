package tenancy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tasknest/tasknest/pkg/apperr"
	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/identity"
	"github.com/tasknest/tasknest/pkg/observability"
)

// Guard checks tenancy boundaries against the profile store.
type Guard struct {
	store   identity.Store
	metrics *observability.Metrics
	log     *logrus.Logger
}

// NewGuard creates a tenancy guard.
func NewGuard(store identity.Store, log *logrus.Logger) *Guard {
	if log == nil {
		log = logrus.New()
	}
	return &Guard{store: store, log: log}
}

// WithMetrics attaches engine metrics.
func (g *Guard) WithMetrics(m *observability.Metrics) *Guard {
	g.metrics = m
	return g
}

// VerifyResult is the answer to a tenancy verification request.
type VerifyResult struct {
	AccountType    identity.AccountType `json:"accountType"`
	Role           authz.Role           `json:"role"`
	OrganizationID *string              `json:"organizationId,omitempty"`
	DepartmentID   *string              `json:"departmentId,omitempty"`
	ClaimsStale    bool                 `json:"claimsStale"`
}

// EnsureMembership returns the identity's membership in the organization.
// The organization's recorded creator gets an owner membership materialized
// on first access; everyone else without a row is denied.
func (g *Guard) EnsureMembership(ctx context.Context, identityID, orgID string) (*identity.Membership, error) {
	m, err := g.store.GetMembership(ctx, orgID, identityID)
	if err == nil {
		g.record("membership", nil)
		return m, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		g.record("membership", err)
		return nil, err
	}

	org, orgErr := g.store.GetOrganization(ctx, orgID)
	if orgErr != nil {
		g.record("membership", orgErr)
		return nil, orgErr
	}
	if org.CreatedBy != identityID {
		denied := apperr.PermissionDenied("user %s is not a member of organization %s", identityID, orgID)
		g.record("membership", denied)
		return nil, denied
	}

	return g.materializeCreatorMembership(ctx, identityID, orgID)
}

// materializeCreatorMembership writes the missing owner row for an
// organization creator. A concurrent materialization is fine; the loser of
// the insert race reads the winner's row.
func (g *Guard) materializeCreatorMembership(ctx context.Context, identityID, orgID string) (*identity.Membership, error) {
	m := &identity.Membership{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         identityID,
		Role:           authz.RoleOrgOwner,
		JoinedAt:       time.Now().UTC(),
	}
	err := g.store.CreateMembership(ctx, m)
	if err != nil && !apperr.IsKind(err, apperr.KindAlreadyExists) {
		g.record("membership", err)
		return nil, err
	}
	if err != nil {
		m, err = g.store.GetMembership(ctx, orgID, identityID)
		if err != nil {
			g.record("membership", err)
			return nil, err
		}
	}

	g.log.WithFields(logrus.Fields{
		"user_id":         identityID,
		"organization_id": orgID,
	}).Info("materialized owner membership for organization creator")
	g.record("membership", nil)
	return m, nil
}

// EnsureRoleAtLeast verifies the identity holds at least the required role
// inside the organization.
func (g *Guard) EnsureRoleAtLeast(ctx context.Context, identityID, orgID string, required authz.Role) (*identity.Membership, error) {
	m, err := g.EnsureMembership(ctx, identityID, orgID)
	if err != nil {
		return nil, err
	}
	if !authz.AtLeastAsPrivileged(m.Role, required) {
		denied := apperr.PermissionDenied("role %s does not meet required role %s in organization %s", m.Role, required, orgID)
		g.record("role", denied)
		return nil, denied
	}
	g.record("role", nil)
	return m, nil
}

// EnsureDepartment verifies the identity may act inside the department.
// Blanket-grant roles reach every department of their organization.
func (g *Guard) EnsureDepartment(ctx context.Context, identityID, orgID, deptID string) (*identity.Membership, error) {
	m, err := g.EnsureMembership(ctx, identityID, orgID)
	if err != nil {
		return nil, err
	}
	if authz.IsBlanketRole(m.Role) {
		g.record("department", nil)
		return m, nil
	}
	if m.DepartmentID == nil || *m.DepartmentID != deptID {
		denied := apperr.PermissionDenied("user %s is not assigned to department %s", identityID, deptID)
		g.record("department", denied)
		return nil, denied
	}
	g.record("department", nil)
	return m, nil
}

// VerifyTenancy re-validates the acting party's tenancy for the requested
// scope against the profile store and reports whether the presented claims
// snapshot is stale.
func (g *Guard) VerifyTenancy(ctx context.Context, scope authz.Scope, orgID, deptID *string, acting *claims.Snapshot) (*VerifyResult, error) {
	if acting == nil {
		return nil, apperr.Unauthenticated("no acting identity")
	}

	ident, err := g.store.GetIdentity(ctx, acting.UserID)
	if err != nil {
		g.record("verify", err)
		return nil, err
	}

	stale := acting.ClaimsVersion < ident.ClaimsVersion
	if stale {
		if g.metrics != nil {
			g.metrics.StaleClaimsTotal.Inc()
		}
		g.log.WithFields(logrus.Fields{
			"user_id":           ident.ID,
			"presented_version": acting.ClaimsVersion,
			"current_version":   ident.ClaimsVersion,
		}).Warn("stale claims snapshot presented")
	}

	result := &VerifyResult{
		AccountType:    ident.AccountType,
		Role:           ident.Role,
		OrganizationID: ident.OrganizationID,
		DepartmentID:   ident.DepartmentID,
		ClaimsStale:    stale,
	}

	switch scope {
	case authz.ScopeSystem:
		if authz.RoleScope(ident.Role) != authz.ScopeSystem {
			denied := apperr.PermissionDenied("role %s is not a system-scope role", ident.Role)
			g.record("verify", denied)
			return nil, denied
		}
	case authz.ScopeOrganization:
		if orgID == nil || *orgID == "" {
			return nil, apperr.InvalidArgument("organization scope requires an organization id")
		}
		m, err := g.EnsureMembership(ctx, ident.ID, *orgID)
		if err != nil {
			g.record("verify", err)
			return nil, err
		}
		result.Role = m.Role
		result.OrganizationID = orgID
		if deptID != nil && *deptID != "" {
			if _, err := g.EnsureDepartment(ctx, ident.ID, *orgID, *deptID); err != nil {
				g.record("verify", err)
				return nil, err
			}
			result.DepartmentID = deptID
		}
	default:
		return nil, apperr.InvalidArgument("unknown scope %q", scope)
	}

	g.record("verify", nil)
	return result, nil
}

func (g *Guard) record(check string, err error) {
	if g.metrics != nil {
		g.metrics.RecordTenancyCheck(check, err)
	}
}
