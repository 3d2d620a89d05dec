package consoleapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/rbum"
	"github.com/grayforge/keyward/pkg/session"
)

// SystemHandler implements the /cs scope: platform-wide domain/kind/
// cert-conf administration and bulk session teardown, the substrate every
// tenant's items sit on.
type SystemHandler struct {
	store    *rbum.Store
	sessions *session.Service
}

// NewSystemHandler builds the system scope's handler.
func NewSystemHandler(d Deps) *SystemHandler {
	return &SystemHandler{store: d.Store, sessions: d.Sessions}
}

// Register attaches every /cs route to r, all behind requireToken —
// platform administration requires an authenticated caller.
func (h *SystemHandler) Register(r chi.Router, requireToken func(http.Handler) http.Handler) {
	r.Use(requireToken)

	r.Post("/domain", h.handleAddDomain)
	r.Get("/domain/{code}", h.handleGetDomain)

	r.Post("/kind", h.handleAddKind)
	r.Get("/kind/{code}", h.handleGetKind)

	r.Post("/cert-conf", h.handleAddCertConf)
	r.Get("/cert-conf/{id}", h.handleGetCertConf)
	r.Put("/cert-conf/{id}", h.handleModifyCertConf)
	r.Delete("/cert-conf/{id}", h.handleDeleteCertConf)

	r.Delete("/session/tenant/{id}", h.handleRevokeTenantSessions)
	r.Delete("/session/app/{id}", h.handleRevokeAppSessions)
}

type addDomainRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (h *SystemHandler) handleAddDomain(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	var req addDomainRequest
	if !httpserver.DecodeAndValidate(w, r, "system", "add-domain", &req) {
		return
	}

	d, err := h.store.AddDomain(r.Context(), req.Code, req.Name, id.Context.TenantID, id.AccountID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, "system", "add-domain", d)
}

func (h *SystemHandler) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDomainByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "get-domain", d)
}

type addKindRequest struct {
	Code         string `json:"code" validate:"required"`
	ExtTableName string `json:"ext_table_name"`
}

func (h *SystemHandler) handleAddKind(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	var req addKindRequest
	if !httpserver.DecodeAndValidate(w, r, "system", "add-kind", &req) {
		return
	}

	k, err := h.store.AddKind(r.Context(), req.Code, req.ExtTableName, id.Context.TenantID, id.AccountID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, "system", "add-kind", k)
}

func (h *SystemHandler) handleGetKind(w http.ResponseWriter, r *http.Request) {
	k, err := h.store.GetKindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "get-kind", k)
}

type addCertConfRequest struct {
	Kind              string `json:"kind" validate:"required"`
	Supplier          string `json:"supplier"`
	AkRule            string `json:"ak_rule"`
	SkRule            string `json:"sk_rule"`
	SkNeed            bool   `json:"sk_need"`
	SkDynamic         bool   `json:"sk_dynamic"`
	SkEncrypted       bool   `json:"sk_encrypted"`
	Repeatable        bool   `json:"repeatable"`
	ExpireSec         int64  `json:"expire_sec" validate:"required"`
	SkLockCycleSec    int64  `json:"sk_lock_cycle_sec"`
	SkLockErrTimes    int    `json:"sk_lock_err_times"`
	SkLockDurationSec int64  `json:"sk_lock_duration_sec"`
	CoexistNum        int    `json:"coexist_num"`
	RelRbumDomainID   string `json:"rel_rbum_domain_id" validate:"required"`
	RelRbumItemID     string `json:"rel_rbum_item_id"`
	OwnPaths          string `json:"own_paths" validate:"required"`
	ScopeLevel        int    `json:"scope_level"`
}

func (h *SystemHandler) handleAddCertConf(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	var req addCertConfRequest
	if !httpserver.DecodeAndValidate(w, r, "system", "add-cert-conf", &req) {
		return
	}

	var relItemID *string
	if req.RelRbumItemID != "" {
		relItemID = &req.RelRbumItemID
	}

	conf, err := h.store.AddCertConf(r.Context(), rbum.AddCertConfReq{
		Kind:              req.Kind,
		Supplier:          req.Supplier,
		AkRule:            req.AkRule,
		SkRule:            req.SkRule,
		SkNeed:            req.SkNeed,
		SkDynamic:         req.SkDynamic,
		SkEncrypted:       req.SkEncrypted,
		Repeatable:        req.Repeatable,
		ExpireSec:         req.ExpireSec,
		SkLockCycleSec:    req.SkLockCycleSec,
		SkLockErrTimes:    req.SkLockErrTimes,
		SkLockDurationSec: req.SkLockDurationSec,
		CoexistNum:        req.CoexistNum,
		RelRbumDomainID:   req.RelRbumDomainID,
		RelRbumItemID:     relItemID,
		OwnPaths:          req.OwnPaths,
		Owner:             id.AccountID,
		ScopeLevel:        rbum.ScopeLevel(req.ScopeLevel),
	})
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, "system", "add-cert-conf", conf)
}

func (h *SystemHandler) handleGetCertConf(w http.ResponseWriter, r *http.Request) {
	conf, err := h.store.GetCertConf(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "get-cert-conf", conf)
}

type modifyCertConfRequest struct {
	AkRule            *string `json:"ak_rule"`
	SkRule            *string `json:"sk_rule"`
	SkNeed            *bool   `json:"sk_need"`
	SkEncrypted       *bool   `json:"sk_encrypted"`
	Repeatable        *bool   `json:"repeatable"`
	ExpireSec         *int64  `json:"expire_sec"`
	SkLockCycleSec    *int64  `json:"sk_lock_cycle_sec"`
	SkLockErrTimes    *int    `json:"sk_lock_err_times"`
	SkLockDurationSec *int64  `json:"sk_lock_duration_sec"`
	CoexistNum        *int    `json:"coexist_num"`
}

func (h *SystemHandler) handleModifyCertConf(w http.ResponseWriter, r *http.Request) {
	var req modifyCertConfRequest
	if !httpserver.DecodeAndValidate(w, r, "system", "modify-cert-conf", &req) {
		return
	}

	conf, err := h.store.ModifyCertConf(r.Context(), chi.URLParam(r, "id"), rbum.ModifyCertConfReq{
		AkRule:            req.AkRule,
		SkRule:            req.SkRule,
		SkNeed:            req.SkNeed,
		SkEncrypted:       req.SkEncrypted,
		Repeatable:        req.Repeatable,
		ExpireSec:         req.ExpireSec,
		SkLockCycleSec:    req.SkLockCycleSec,
		SkLockErrTimes:    req.SkLockErrTimes,
		SkLockDurationSec: req.SkLockDurationSec,
		CoexistNum:        req.CoexistNum,
	})
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "modify-cert-conf", conf)
}

func (h *SystemHandler) handleDeleteCertConf(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCertConf(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "delete-cert-conf", nil)
}

// handleRevokeTenantSessions tears down every session scoped to a tenant:
// tokens revoked, cached contexts cleared.
func (h *SystemHandler) handleRevokeTenantSessions(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.DeleteTokensAndContextsByTenantOrApp(r.Context(), chi.URLParam(r, "id"), false); err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "revoke-tenant-sessions", nil)
}

// handleRevokeAppSessions drops the app-scoped context fields for an app
// without revoking the owning accounts' tenant-level sessions.
func (h *SystemHandler) handleRevokeAppSessions(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.DeleteTokensAndContextsByTenantOrApp(r.Context(), chi.URLParam(r, "id"), true); err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "system", "revoke-app-sessions", nil)
}
