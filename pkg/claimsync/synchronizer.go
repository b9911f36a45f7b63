package claimsync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tasknest/tasknest/pkg/apperr"
	"github.com/tasknest/tasknest/pkg/audit"
	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/identity"
	"github.com/tasknest/tasknest/pkg/observability"
)

// permManageUsers gates every mutation the synchronizer performs on another
// user's authorization state.
var permManageUsers = authz.Permission{Area: authz.AreaUsers, Action: authz.ActionAssign}

// Synchronizer owns the dual write of profile store documents and claims
// snapshots.
type Synchronizer struct {
	store    identity.Store
	provider claims.Provider
	auditor  audit.Logger
	metrics  *observability.Metrics
	log      *logrus.Logger
}

// New creates a synchronizer. Audit and metrics are off until attached.
func New(store identity.Store, provider claims.Provider, log *logrus.Logger) *Synchronizer {
	if log == nil {
		log = logrus.New()
	}
	return &Synchronizer{
		store:    store,
		provider: provider,
		auditor:  audit.NopLogger{},
		log:      log,
	}
}

// WithAudit attaches an audit logger.
func (s *Synchronizer) WithAudit(a audit.Logger) *Synchronizer {
	s.auditor = a
	return s
}

// WithMetrics attaches engine metrics.
func (s *Synchronizer) WithMetrics(m *observability.Metrics) *Synchronizer {
	s.metrics = m
	return s
}

// SetRole assigns a new role to the target identity. The acting party must
// hold the user-management permission and be at least as privileged as both
// the target's current role and the role being assigned, judged by its
// stored profile rather than the presented snapshot.
func (s *Synchronizer) SetRole(ctx context.Context, targetID string, newRole authz.Role, acting *claims.Snapshot) (*claims.Snapshot, error) {
	actor, err := s.authorize(ctx, "setRole", acting, targetID)
	if err != nil {
		return nil, err
	}
	if !authz.ValidRole(newRole) {
		return nil, apperr.InvalidArgument("unknown role %q", newRole)
	}

	ident, err := s.store.GetIdentity(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.checkReach(ctx, "setRole", actor, ident); err != nil {
		return nil, err
	}
	if !authz.AtLeastAsPrivileged(actor.Role, newRole) || !authz.AtLeastAsPrivileged(actor.Role, ident.Role) {
		s.denied(ctx, "setRole", actor.ID, targetID, "insufficient seniority")
		return nil, apperr.PermissionDenied("role %s may not assign role %s", actor.Role, newRole)
	}

	if err := s.checkSoleOwner(ctx, ident, newRole); err != nil {
		return nil, err
	}

	oldRole := ident.Role
	ident.Role = newRole
	ident.Flags = identity.FlagsForRole(newRole)

	snap, err := s.sync(ctx, "setRole", ident)
	if err != nil {
		s.audit(ctx, audit.NewEvent(audit.EventTypeRoleChange, audit.EventStatusFailure, acting.UserID, targetID).
			WithError(err).WithMetadata("new_role", string(newRole)))
		return nil, err
	}

	s.syncMembershipRole(ctx, ident)

	s.log.WithFields(logrus.Fields{
		"target_id": targetID,
		"old_role":  oldRole,
		"new_role":  newRole,
		"version":   snap.ClaimsVersion,
	}).Info("role updated")
	s.audit(ctx, audit.NewEvent(audit.EventTypeRoleChange, audit.EventStatusSuccess, acting.UserID, targetID).
		WithMetadata("old_role", string(oldRole)).WithMetadata("new_role", string(newRole)))
	return snap, nil
}

// SetCustomPermissions replaces the target's custom permission grants.
func (s *Synchronizer) SetCustomPermissions(ctx context.Context, targetID string, perms []authz.Permission, acting *claims.Snapshot) (*claims.Snapshot, error) {
	actor, err := s.authorize(ctx, "setCustomPermissions", acting, targetID)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		if !authz.ValidPermission(p) {
			return nil, apperr.InvalidArgument("unknown permission %q", p.String())
		}
	}

	ident, err := s.store.GetIdentity(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.checkReach(ctx, "setCustomPermissions", actor, ident); err != nil {
		return nil, err
	}
	if !authz.AtLeastAsPrivileged(actor.Role, ident.Role) {
		s.denied(ctx, "setCustomPermissions", actor.ID, targetID, "insufficient seniority")
		return nil, apperr.PermissionDenied("role %s may not grant permissions to role %s", actor.Role, ident.Role)
	}

	ident.CustomPermissions = make([]authz.Permission, len(perms))
	copy(ident.CustomPermissions, perms)

	snap, err := s.sync(ctx, "setCustomPermissions", ident)
	if err != nil {
		s.audit(ctx, audit.NewEvent(audit.EventTypePermissionGrant, audit.EventStatusFailure, acting.UserID, targetID).WithError(err))
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"target_id": targetID,
		"grants":    len(perms),
		"version":   snap.ClaimsVersion,
	}).Info("custom permissions updated")
	s.audit(ctx, audit.NewEvent(audit.EventTypePermissionGrant, audit.EventStatusSuccess, acting.UserID, targetID).
		WithMetadata("grants", len(perms)))
	return snap, nil
}

// SetTenancy moves the target between individual and organization account
// types. Joining an organization materializes a membership; leaving one
// removes it and falls back to the independent role. Users may change their
// own tenancy; changing someone else's requires the user-management
// permission.
func (s *Synchronizer) SetTenancy(ctx context.Context, targetID string, accountType identity.AccountType, orgID, deptID *string, acting *claims.Snapshot) (*claims.Snapshot, error) {
	if acting == nil {
		return nil, apperr.Unauthenticated("no acting identity")
	}
	var actor *identity.Identity
	if acting.UserID != targetID {
		var err error
		actor, err = s.authorize(ctx, "setTenancy", acting, targetID)
		if err != nil {
			return nil, err
		}
	}

	ident, err := s.store.GetIdentity(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actor != nil {
		if err := s.checkReach(ctx, "setTenancy", actor, ident); err != nil {
			return nil, err
		}
		if !authz.AtLeastAsPrivileged(actor.Role, ident.Role) {
			s.denied(ctx, "setTenancy", actor.ID, targetID, "insufficient seniority")
			return nil, apperr.PermissionDenied("role %s may not change tenancy of role %s", actor.Role, ident.Role)
		}
	}

	switch accountType {
	case identity.AccountOrganization:
		return s.joinOrganization(ctx, ident, orgID, deptID, acting)
	case identity.AccountIndividual:
		return s.leaveOrganization(ctx, ident, acting)
	default:
		return nil, apperr.InvalidArgument("unknown account type %q", accountType)
	}
}

func (s *Synchronizer) joinOrganization(ctx context.Context, ident *identity.Identity, orgID, deptID *string, acting *claims.Snapshot) (*claims.Snapshot, error) {
	if orgID == nil || *orgID == "" {
		return nil, apperr.InvalidArgument("organization account requires an organization id")
	}
	if _, err := s.store.GetOrganization(ctx, *orgID); err != nil {
		return nil, err
	}

	ident.AccountType = identity.AccountOrganization
	ident.OrganizationID = orgID
	ident.DepartmentID = deptID
	if authz.RoleScope(ident.Role) != authz.ScopeOrganization {
		ident.Role = authz.RoleOrgAssistant
	}
	ident.Flags = identity.FlagsForRole(ident.Role)

	snap, err := s.sync(ctx, "setTenancy", ident)
	if err != nil {
		s.audit(ctx, audit.NewEvent(audit.EventTypeTenancyChange, audit.EventStatusFailure, acting.UserID, ident.ID).
			WithOrganization(*orgID).WithError(err))
		return nil, err
	}

	m := &identity.Membership{
		ID:             uuid.NewString(),
		OrganizationID: *orgID,
		UserID:         ident.ID,
		Role:           ident.Role,
		DepartmentID:   deptID,
		JoinedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateMembership(ctx, m); err != nil && !apperr.IsKind(err, apperr.KindAlreadyExists) {
		s.log.WithError(err).WithField("organization_id", *orgID).Warn("membership write failed after tenancy update")
	}

	s.log.WithFields(logrus.Fields{
		"target_id":       ident.ID,
		"organization_id": *orgID,
		"version":         snap.ClaimsVersion,
	}).Info("tenancy updated")
	s.audit(ctx, audit.NewEvent(audit.EventTypeTenancyChange, audit.EventStatusSuccess, acting.UserID, ident.ID).
		WithOrganization(*orgID).WithMetadata("account_type", string(identity.AccountOrganization)))
	return snap, nil
}

func (s *Synchronizer) leaveOrganization(ctx context.Context, ident *identity.Identity, acting *claims.Snapshot) (*claims.Snapshot, error) {
	if err := s.checkSoleOwner(ctx, ident, authz.RoleIndependent); err != nil {
		return nil, err
	}

	previousOrg := ident.OrganizationID
	ident.AccountType = identity.AccountIndividual
	ident.OrganizationID = nil
	ident.DepartmentID = nil
	if authz.RoleScope(ident.Role) == authz.ScopeOrganization {
		ident.Role = authz.RoleIndependent
	}
	ident.Flags = identity.FlagsForRole(ident.Role)

	snap, err := s.sync(ctx, "setTenancy", ident)
	if err != nil {
		s.audit(ctx, audit.NewEvent(audit.EventTypeTenancyChange, audit.EventStatusFailure, acting.UserID, ident.ID).WithError(err))
		return nil, err
	}

	if previousOrg != nil {
		if err := s.store.DeleteMembership(ctx, *previousOrg, ident.ID); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			s.log.WithError(err).WithField("organization_id", *previousOrg).Warn("membership delete failed after tenancy update")
		}
	}

	s.log.WithFields(logrus.Fields{
		"target_id": ident.ID,
		"version":   snap.ClaimsVersion,
	}).Info("tenancy updated")
	event := audit.NewEvent(audit.EventTypeTenancyChange, audit.EventStatusSuccess, acting.UserID, ident.ID).
		WithMetadata("account_type", string(identity.AccountIndividual))
	if previousOrg != nil {
		event = event.WithOrganization(*previousOrg)
	}
	s.audit(ctx, event)
	return snap, nil
}

// ApplyRole is the administrative write path. It skips the acting party's
// permission and seniority checks but keeps role validation, flag
// recomputation, and the profile-before-claims write ordering. Only the
// migration engine should call it.
func (s *Synchronizer) ApplyRole(ctx context.Context, targetID string, newRole authz.Role, actorID string) (*claims.Snapshot, error) {
	if !authz.ValidRole(newRole) {
		return nil, apperr.InvalidArgument("unknown role %q", newRole)
	}

	ident, err := s.store.GetIdentity(ctx, targetID)
	if err != nil {
		return nil, err
	}

	oldRole := ident.Role
	ident.Role = newRole
	ident.Flags = identity.FlagsForRole(newRole)

	snap, err := s.sync(ctx, "applyRole", ident)
	if err != nil {
		return nil, err
	}

	s.syncMembershipRole(ctx, ident)

	s.log.WithFields(logrus.Fields{
		"target_id": targetID,
		"old_role":  oldRole,
		"new_role":  newRole,
		"actor_id":  actorID,
	}).Info("role applied administratively")
	return snap, nil
}

// sync performs the ordered dual write: profile store first, then the
// claims snapshot derived from the committed document.
func (s *Synchronizer) sync(ctx context.Context, op string, ident *identity.Identity) (*claims.Snapshot, error) {
	start := time.Now()

	if _, err := s.store.SaveAuthz(ctx, ident); err != nil {
		s.recordSync(op, err, start)
		return nil, err
	}

	snap := claims.FromIdentity(ident)
	if err := s.provider.Put(ctx, snap); err != nil {
		s.recordSync(op, err, start)
		return nil, apperr.Internal(err, "claims write failed after profile commit for user %s; snapshot is stale until retried", ident.ID)
	}

	s.recordSync(op, nil, start)
	return snap, nil
}

// syncMembershipRole mirrors an organization-scoped role change onto the
// membership row. A missing row is not an error here; the tenancy guard
// materializes creator memberships lazily.
func (s *Synchronizer) syncMembershipRole(ctx context.Context, ident *identity.Identity) {
	if ident.OrganizationID == nil || authz.RoleScope(ident.Role) != authz.ScopeOrganization {
		return
	}
	err := s.store.UpdateMembershipRole(ctx, *ident.OrganizationID, ident.ID, ident.Role)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		s.log.WithError(err).WithFields(logrus.Fields{
			"target_id":       ident.ID,
			"organization_id": *ident.OrganizationID,
		}).Warn("membership role update failed")
	}
}

// authorize resolves the acting party against the profile store and checks
// the user-management permission there. The presented snapshot only names
// the actor; role and permission grants come from the stored record, so a
// snapshot minted before a demotion carries no authority.
func (s *Synchronizer) authorize(ctx context.Context, op string, acting *claims.Snapshot, targetID string) (*identity.Identity, error) {
	if acting == nil {
		return nil, apperr.Unauthenticated("no acting identity")
	}
	actor, err := s.store.GetIdentity(ctx, acting.UserID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated("unknown acting identity %s", acting.UserID)
		}
		return nil, err
	}
	if !authz.IsAuthorized(actor.Role, actor.CustomPermissions, permManageUsers) {
		s.denied(ctx, op, actor.ID, targetID, "missing permission "+permManageUsers.String())
		return nil, apperr.PermissionDenied("%s requires permission %s", op, permManageUsers.String())
	}
	if s.metrics != nil {
		s.metrics.RecordDecision(op, true)
	}
	return actor, nil
}

// checkReach limits operators to their own tenancy. System operators reach
// everyone; everyone reaches themselves; an organization operator reaches a
// target only while the membership record places the operator in the
// target's organization. The record decides, not the snapshot: an operator
// removed from the organization loses reach immediately.
func (s *Synchronizer) checkReach(ctx context.Context, op string, actor *identity.Identity, target *identity.Identity) error {
	if actor.Role == authz.RoleSystemOwner || actor.Role == authz.RoleSystemAdmin {
		return nil
	}
	if actor.ID == target.ID {
		return nil
	}
	if target.OrganizationID != nil {
		_, err := s.store.GetMembership(ctx, *target.OrganizationID, actor.ID)
		if err == nil {
			return nil
		}
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}
	}
	s.denied(ctx, op, actor.ID, target.ID, "target outside acting party's tenancy")
	return apperr.PermissionDenied("role %s may not manage users outside their organization", actor.Role)
}

// checkSoleOwner rejects changes that would leave an organization without
// any owner.
func (s *Synchronizer) checkSoleOwner(ctx context.Context, ident *identity.Identity, newRole authz.Role) error {
	if ident.Role != authz.RoleOrgOwner || newRole == authz.RoleOrgOwner || ident.OrganizationID == nil {
		return nil
	}
	count, err := s.store.CountOwners(ctx, *ident.OrganizationID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return apperr.FailedPrecondition("cannot demote the sole owner of organization %s", *ident.OrganizationID)
	}
	return nil
}

func (s *Synchronizer) denied(ctx context.Context, op, actorID, targetID, reason string) {
	if s.metrics != nil {
		s.metrics.RecordDecision(op, false)
	}
	s.audit(ctx, audit.NewEvent(audit.EventTypeAccessDenied, audit.EventStatusDenied, actorID, targetID).
		WithMessage(reason).WithMetadata("operation", op))
}

func (s *Synchronizer) recordSync(op string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordClaimsSync(op, err, time.Since(start))
	}
}

// audit writes an event best effort.
func (s *Synchronizer) audit(ctx context.Context, event *audit.Event) {
	if err := s.auditor.Log(ctx, event); err != nil {
		s.log.WithError(err).Warn("audit write failed")
	}
}
