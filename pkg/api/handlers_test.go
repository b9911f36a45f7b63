package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/claimsync"
	"github.com/tasknest/tasknest/pkg/identity"
	"github.com/tasknest/tasknest/pkg/identity/identitytest"
	"github.com/tasknest/tasknest/pkg/migration"
	"github.com/tasknest/tasknest/pkg/tenancy"
)

type apiFixture struct {
	store    identity.Store
	provider *claims.RedisProvider
	codec    *claims.Codec
	router   *mux.Router
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := identitytest.NewStore(t)
	mr := miniredis.RunT(t)
	provider := claims.NewRedisProvider(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { provider.Close() })

	log, _ := test.NewNullLogger()
	sync := claimsync.New(store, provider, log)
	guard := tenancy.NewGuard(store, log)
	engine := migration.NewEngine(store, sync, log)

	codec := claims.NewCodec([]byte("test-secret"), "tasknest", time.Hour)
	router := mux.NewRouter()
	router.Use(NewClaimsMiddleware(codec, true).Handler)
	NewHandlers(sync, guard, engine, log).RegisterRoutes(router)

	return &apiFixture{store: store, provider: provider, codec: codec, router: router}
}

func (f *apiFixture) seedIdentity(t *testing.T, ident *identity.Identity) {
	t.Helper()
	require.NoError(t, f.store.CreateIdentity(context.Background(), ident))
}

func (f *apiFixture) seedOrgMember(t *testing.T, orgID, userID string, role authz.Role) *identity.Identity {
	t.Helper()
	ident := &identity.Identity{
		ID: userID, Role: role, AccountType: identity.AccountOrganization,
		OrganizationID: &orgID, Flags: identity.FlagsForRole(role),
	}
	f.seedIdentity(t, ident)
	require.NoError(t, f.store.CreateMembership(context.Background(), &identity.Membership{
		OrganizationID: orgID, UserID: userID, Role: role,
	}))
	return ident
}

// token mints a bearer token for the identity's current claims snapshot.
func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	ident, err := f.store.GetIdentity(context.Background(), userID)
	require.NoError(t, err)
	tok, err := f.codec.Encode(claims.FromIdentity(ident))
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSetRoleEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	orgID := "org-1"
	f.seedIdentity(t, &identity.Identity{ID: "creator-1", Role: authz.RoleIndependent, AccountType: identity.AccountIndividual})
	require.NoError(t, f.store.CreateOrganization(context.Background(), &identity.Organization{ID: orgID, Name: "Org One", CreatedBy: "creator-1"}))
	f.seedOrgMember(t, orgID, "owner-1", authz.RoleOrgOwner)
	f.seedOrgMember(t, orgID, "eng-1", authz.RoleOrgEngineer)

	rec := f.do(t, "POST", "/authz/roles/eng-1", f.token(t, "owner-1"), setRoleRequest{Role: "org:technician"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "eng-1", body["userId"])
	assert.Equal(t, "org:technician", body["role"])
	assert.Equal(t, float64(1), body["claimsVersion"])

	// Profile store and claims cache both reflect the new role.
	ident, err := f.store.GetIdentity(context.Background(), "eng-1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleOrgTechnician, ident.Role)
	snap, err := f.provider.Get(context.Background(), "eng-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, authz.RoleOrgTechnician, snap.Role)
}

func TestSetRoleEndpointErrors(t *testing.T) {
	f := newAPIFixture(t)
	orgID := "org-1"
	f.seedOrgMember(t, orgID, "owner-1", authz.RoleOrgOwner)
	f.seedOrgMember(t, orgID, "super-1", authz.RoleOrgSupervisor)
	f.seedOrgMember(t, orgID, "eng-1", authz.RoleOrgEngineer)

	tests := []struct {
		name   string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{"no credential", "/authz/roles/eng-1", "", setRoleRequest{Role: "org:technician"}, http.StatusUnauthorized},
		{"insufficient permission", "/authz/roles/eng-1", f.token(t, "super-1"), setRoleRequest{Role: "org:technician"}, http.StatusForbidden},
		{"unknown role", "/authz/roles/eng-1", f.token(t, "owner-1"), setRoleRequest{Role: "superuser"}, http.StatusBadRequest},
		{"missing target", "/authz/roles/ghost-9", f.token(t, "owner-1"), setRoleRequest{Role: "org:technician"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, "POST", tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSetRoleEndpointMalformedInput(t *testing.T) {
	f := newAPIFixture(t)
	f.seedOrgMember(t, "org-1", "owner-1", authz.RoleOrgOwner)

	t.Run("garbled token", func(t *testing.T) {
		rec := f.do(t, "POST", "/authz/roles/owner-1", "not-a-token", setRoleRequest{Role: "org:admin"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad json body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/authz/roles/owner-1", bytes.NewBufferString("{nope"))
		req.Header.Set("Authorization", "Bearer "+f.token(t, "owner-1"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSetCustomPermissionsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedOrgMember(t, "org-1", "owner-1", authz.RoleOrgOwner)
	f.seedOrgMember(t, "org-1", "tech-1", authz.RoleOrgTechnician)

	perms := []authz.Permission{{Area: authz.AreaReports, Action: authz.ActionApprove}}
	rec := f.do(t, "POST", "/authz/permissions/tech-1", f.token(t, "owner-1"), setPermissionsRequest{Permissions: perms})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ident, err := f.store.GetIdentity(context.Background(), "tech-1")
	require.NoError(t, err)
	assert.Equal(t, perms, ident.CustomPermissions)

	rec = f.do(t, "POST", "/authz/permissions/tech-1", f.token(t, "owner-1"), setPermissionsRequest{
		Permissions: []authz.Permission{{Area: "warp", Action: "engage"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTenancyEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.store.CreateOrganization(context.Background(), &identity.Organization{ID: "org-1", Name: "Org One", CreatedBy: "creator-1"}))
	f.seedIdentity(t, &identity.Identity{ID: "solo-1", Role: authz.RoleIndependent, AccountType: identity.AccountIndividual})

	orgID := "org-1"
	rec := f.do(t, "POST", "/authz/tenancy/solo-1", f.token(t, "solo-1"), setTenancyRequest{
		AccountType: "organization", OrganizationID: &orgID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "organization", body["accountType"])
	assert.Equal(t, "org-1", body["organizationId"])
	assert.Equal(t, "org:assistant", body["role"])

	// Joining a ghost organization is rejected.
	ghost := "org-ghost"
	rec = f.do(t, "POST", "/authz/tenancy/solo-1", f.token(t, "solo-1"), setTenancyRequest{
		AccountType: "organization", OrganizationID: &ghost,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyTenancyEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.store.CreateOrganization(context.Background(), &identity.Organization{ID: "org-1", Name: "Org One", CreatedBy: "creator-1"}))
	f.seedOrgMember(t, "org-1", "eng-1", authz.RoleOrgEngineer)

	orgID := "org-1"
	rec := f.do(t, "POST", "/tenancy/verify", f.token(t, "eng-1"), verifyTenancyRequest{
		Scope: "organization", OrganizationID: &orgID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result tenancy.VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, authz.RoleOrgEngineer, result.Role)
	assert.False(t, result.ClaimsStale)

	t.Run("foreign organization denied", func(t *testing.T) {
		other := "org-2"
		rec := f.do(t, "POST", "/tenancy/verify", f.token(t, "eng-1"), verifyTenancyRequest{
			Scope: "organization", OrganizationID: &other,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no credential", func(t *testing.T) {
		rec := f.do(t, "POST", "/tenancy/verify", "", verifyTenancyRequest{Scope: "system"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestVerifyTenancyReportsStaleClaims(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.store.CreateOrganization(context.Background(), &identity.Organization{ID: "org-1", Name: "Org One", CreatedBy: "creator-1"}))
	f.seedOrgMember(t, "org-1", "owner-1", authz.RoleOrgOwner)
	f.seedOrgMember(t, "org-1", "eng-1", authz.RoleOrgEngineer)

	// Token minted before the role change carries the old claims version.
	staleToken := f.token(t, "eng-1")
	rec := f.do(t, "POST", "/authz/roles/eng-1", f.token(t, "owner-1"), setRoleRequest{Role: "org:technician"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	orgID := "org-1"
	rec = f.do(t, "POST", "/tenancy/verify", staleToken, verifyTenancyRequest{
		Scope: "organization", OrganizationID: &orgID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result tenancy.VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.ClaimsStale)
	assert.Equal(t, authz.RoleOrgTechnician, result.Role)
}

func TestMigrationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	f.seedIdentity(t, &identity.Identity{ID: "root-1", Role: authz.RoleSystemOwner, AccountType: identity.AccountIndividual})
	require.NoError(t, f.store.CreateOrganization(ctx, &identity.Organization{ID: "org-1", Name: "Org One", CreatedBy: "creator-1"}))

	orgID := "org-1"
	f.seedIdentity(t, &identity.Identity{
		ID: "legacy-1", Role: authz.RoleOrgAssistant, AccountType: identity.AccountOrganization,
		OrganizationID: &orgID, LegacyOwnerFlag: true,
	})
	require.NoError(t, f.store.CreateMembership(ctx, &identity.Membership{
		OrganizationID: orgID, UserID: "legacy-1", Role: authz.RoleOrgAssistant, LegacyOwnerFlag: true,
	}))

	rec := f.do(t, "POST", "/migration/organizations/org-1", f.token(t, "root-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result migration.OrganizationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.MigratedCount)
	require.Len(t, result.Members, 1)
	assert.Equal(t, authz.RoleOrgOwner, result.Members[0].Role)

	rec = f.do(t, "GET", "/migration/status", f.token(t, "root-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report migration.StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.OrganizationsMigrated)

	t.Run("requires system owner", func(t *testing.T) {
		f.seedIdentity(t, &identity.Identity{ID: "admin-1", Role: authz.RoleSystemAdmin, AccountType: identity.AccountIndividual})
		rec := f.do(t, "POST", "/migration/organizations", f.token(t, "admin-1"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("batch runs", func(t *testing.T) {
		rec := f.do(t, "POST", "/migration/organizations", f.token(t, "root-1"), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, "POST", "/migration/users", f.token(t, "root-1"), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}
