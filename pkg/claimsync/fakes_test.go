package claimsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tasknest/tasknest/pkg/apperr"
	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/identity"
)

// memStore is an in-memory profile store. It records the order of write
// operations so tests can assert the profile-before-claims discipline, and
// can be told to fail specific writes.
type memStore struct {
	mu            sync.Mutex
	identities    map[string]*identity.Identity
	organizations map[string]*identity.Organization
	memberships   map[string]*identity.Membership // key: orgID/userID
	ops           *opLog

	failSaveAuthz error
}

type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) record(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.ops))
	copy(out, l.ops)
	return out
}

func newMemStore() *memStore {
	return &memStore{
		identities:    make(map[string]*identity.Identity),
		organizations: make(map[string]*identity.Organization),
		memberships:   make(map[string]*identity.Membership),
		ops:           &opLog{},
	}
}

func membershipKey(orgID, userID string) string { return orgID + "/" + userID }

func copyIdentity(ident *identity.Identity) *identity.Identity {
	c := *ident
	if ident.CustomPermissions != nil {
		c.CustomPermissions = make([]authz.Permission, len(ident.CustomPermissions))
		copy(c.CustomPermissions, ident.CustomPermissions)
	}
	return &c
}

func (s *memStore) GetIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, apperr.NotFound("identity %s not found", id)
	}
	return copyIdentity(ident), nil
}

func (s *memStore) CreateIdentity(ctx context.Context, ident *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	s.identities[ident.ID] = copyIdentity(ident)
	return nil
}

func (s *memStore) SaveAuthz(ctx context.Context, ident *identity.Identity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops.record("store.SaveAuthz")
	if s.failSaveAuthz != nil {
		return 0, apperr.Internal(s.failSaveAuthz, "save authz fields for identity %s", ident.ID)
	}
	stored, ok := s.identities[ident.ID]
	if !ok {
		return 0, apperr.NotFound("identity %s not found", ident.ID)
	}
	ident.ClaimsVersion = stored.ClaimsVersion + 1
	ident.UpdatedAt = time.Now().UTC()
	s.identities[ident.ID] = copyIdentity(ident)
	return ident.ClaimsVersion, nil
}

func (s *memStore) ListIndependentIdentities(ctx context.Context) ([]*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*identity.Identity
	for _, ident := range s.identities {
		if ident.AccountType == identity.AccountIndividual {
			out = append(out, copyIdentity(ident))
		}
	}
	return out, nil
}

func (s *memStore) MarkIdentityMigrated(ctx context.Context, id, migratedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return apperr.NotFound("identity %s not found", id)
	}
	now := time.Now().UTC()
	ident.Migrated = true
	ident.MigratedAt = &now
	ident.MigratedBy = migratedBy
	return nil
}

func (s *memStore) GetOrganization(ctx context.Context, id string) (*identity.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organizations[id]
	if !ok {
		return nil, apperr.NotFound("organization %s not found", id)
	}
	c := *org
	return &c, nil
}

func (s *memStore) CreateOrganization(ctx context.Context, org *identity.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	c := *org
	s.organizations[org.ID] = &c
	return nil
}

func (s *memStore) ListOrganizations(ctx context.Context) ([]*identity.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*identity.Organization
	for _, org := range s.organizations {
		c := *org
		out = append(out, &c)
	}
	return out, nil
}

func (s *memStore) MarkOrganizationMigrated(ctx context.Context, id, migratedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organizations[id]
	if !ok {
		return apperr.NotFound("organization %s not found", id)
	}
	now := time.Now().UTC()
	org.Migrated = true
	org.MigratedAt = &now
	org.MigratedBy = migratedBy
	return nil
}

func (s *memStore) GetMembership(ctx context.Context, orgID, userID string) (*identity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(orgID, userID)]
	if !ok {
		return nil, apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	c := *m
	return &c, nil
}

func (s *memStore) CreateMembership(ctx context.Context, m *identity.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops.record("store.CreateMembership")
	key := membershipKey(m.OrganizationID, m.UserID)
	if _, ok := s.memberships[key]; ok {
		return apperr.New(apperr.KindAlreadyExists, "user %s is already a member of organization %s", m.UserID, m.OrganizationID)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	c := *m
	s.memberships[key] = &c
	return nil
}

func (s *memStore) ListMemberships(ctx context.Context, orgID string) ([]*identity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*identity.Membership
	for _, m := range s.memberships {
		if m.OrganizationID == orgID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) DeleteMembership(ctx context.Context, orgID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(orgID, userID)
	if _, ok := s.memberships[key]; !ok {
		return apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	delete(s.memberships, key)
	return nil
}

func (s *memStore) UpdateMembershipRole(ctx context.Context, orgID, userID string, role authz.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops.record("store.UpdateMembershipRole")
	m, ok := s.memberships[membershipKey(orgID, userID)]
	if !ok {
		return apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	m.Role = role
	return nil
}

func (s *memStore) MarkMembershipMigrated(ctx context.Context, orgID, userID, migratedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(orgID, userID)]
	if !ok {
		return apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	now := time.Now().UTC()
	m.Migrated = true
	m.MigratedAt = &now
	m.MigratedBy = migratedBy
	return nil
}

func (s *memStore) CountOwners(ctx context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.memberships {
		if m.OrganizationID == orgID && m.Role == authz.RoleOrgOwner {
			count++
		}
	}
	return count, nil
}

// memProvider is an in-memory claims provider with injectable write faults.
type memProvider struct {
	mu        sync.Mutex
	snapshots map[string]*claims.Snapshot
	ops       *opLog

	failPut error
}

func newMemProvider(ops *opLog) *memProvider {
	return &memProvider{snapshots: make(map[string]*claims.Snapshot), ops: ops}
}

func (p *memProvider) Get(ctx context.Context, userID string) (*claims.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, ok := p.snapshots[userID]
	if !ok {
		return nil, nil
	}
	c := *snap
	return &c, nil
}

func (p *memProvider) Put(ctx context.Context, snap *claims.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops.record("provider.Put")
	if p.failPut != nil {
		return apperr.Internal(p.failPut, "write claims for user %s", snap.UserID)
	}
	c := *snap
	p.snapshots[snap.UserID] = &c
	return nil
}

func (p *memProvider) Invalidate(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snapshots, userID)
	return nil
}
