package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/claimsync"
	"github.com/tasknest/tasknest/pkg/contextkeys"
	"github.com/tasknest/tasknest/pkg/httputil"
	"github.com/tasknest/tasknest/pkg/identity"
	"github.com/tasknest/tasknest/pkg/migration"
	"github.com/tasknest/tasknest/pkg/tenancy"
)

// Handlers exposes the authorization engine over HTTP.
type Handlers struct {
	sync   *claimsync.Synchronizer
	guard  *tenancy.Guard
	engine *migration.Engine
	log    *logrus.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(sync *claimsync.Synchronizer, guard *tenancy.Guard, engine *migration.Engine, log *logrus.Logger) *Handlers {
	return &Handlers{sync: sync, guard: guard, engine: engine, log: log}
}

// RegisterRoutes attaches all engine routes to the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/authz/roles/{id}", h.setRole).Methods("POST")
	router.HandleFunc("/authz/permissions/{id}", h.setCustomPermissions).Methods("POST")
	router.HandleFunc("/authz/tenancy/{id}", h.setTenancy).Methods("POST")
	router.HandleFunc("/tenancy/verify", h.verifyTenancy).Methods("POST")
	router.HandleFunc("/migration/organizations/{id}", h.migrateOrganization).Methods("POST")
	router.HandleFunc("/migration/organizations", h.migrateAllOrganizations).Methods("POST")
	router.HandleFunc("/migration/users", h.migrateIndependentUsers).Methods("POST")
	router.HandleFunc("/migration/status", h.migrationStatus).Methods("GET")
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handlers) setRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := httputil.PathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "missing identity id")
		return
	}

	var req setRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	acting := contextkeys.ClaimsFrom(r.Context())
	snap, err := h.sync.SetRole(r.Context(), targetID, authz.Role(req.Role), acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"userId":        snap.UserID,
		"role":          snap.Role,
		"claimsVersion": snap.ClaimsVersion,
	})
}

type setPermissionsRequest struct {
	Permissions []authz.Permission `json:"permissions"`
}

func (h *Handlers) setCustomPermissions(w http.ResponseWriter, r *http.Request) {
	targetID, err := httputil.PathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "missing identity id")
		return
	}

	var req setPermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	acting := contextkeys.ClaimsFrom(r.Context())
	snap, err := h.sync.SetCustomPermissions(r.Context(), targetID, req.Permissions, acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"userId":        snap.UserID,
		"permissions":   snap.CustomPermissions,
		"claimsVersion": snap.ClaimsVersion,
	})
}

type setTenancyRequest struct {
	AccountType    string  `json:"accountType"`
	OrganizationID *string `json:"organizationId"`
	DepartmentID   *string `json:"departmentId"`
}

func (h *Handlers) setTenancy(w http.ResponseWriter, r *http.Request) {
	targetID, err := httputil.PathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "missing identity id")
		return
	}

	var req setTenancyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	acting := contextkeys.ClaimsFrom(r.Context())
	snap, err := h.sync.SetTenancy(r.Context(), targetID, identity.AccountType(req.AccountType), req.OrganizationID, req.DepartmentID, acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"userId":         snap.UserID,
		"accountType":    snap.AccountType,
		"organizationId": snap.OrganizationID,
		"departmentId":   snap.DepartmentID,
		"role":           snap.Role,
		"claimsVersion":  snap.ClaimsVersion,
	})
}

type verifyTenancyRequest struct {
	Scope          string  `json:"scope"`
	OrganizationID *string `json:"organizationId"`
	DepartmentID   *string `json:"departmentId"`
}

func (h *Handlers) verifyTenancy(w http.ResponseWriter, r *http.Request) {
	var req verifyTenancyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	acting := contextkeys.ClaimsFrom(r.Context())
	result, err := h.guard.VerifyTenancy(r.Context(), authz.Scope(req.Scope), req.OrganizationID, req.DepartmentID, acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

func (h *Handlers) migrateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.PathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "missing organization id")
		return
	}

	acting := contextkeys.ClaimsFrom(r.Context())
	result, err := h.engine.MigrateOrganization(r.Context(), orgID, acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

func (h *Handlers) migrateAllOrganizations(w http.ResponseWriter, r *http.Request) {
	acting := contextkeys.ClaimsFrom(r.Context())
	result, err := h.engine.MigrateAllOrganizations(r.Context(), acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

func (h *Handlers) migrateIndependentUsers(w http.ResponseWriter, r *http.Request) {
	acting := contextkeys.ClaimsFrom(r.Context())
	result, err := h.engine.MigrateAllIndependentUsers(r.Context(), acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

func (h *Handlers) migrationStatus(w http.ResponseWriter, r *http.Request) {
	acting := contextkeys.ClaimsFrom(r.Context())
	report, err := h.engine.CheckMigrationStatus(r.Context(), acting)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, report)
}
