package consoleapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/audit"
	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/credential"
	"github.com/grayforge/keyward/pkg/rbum"
	"github.com/grayforge/keyward/pkg/session"
)

// TenantHandler implements the /ct scope: generic item CRUD (accounts,
// roles, tenant-scoped anchors) and the rel/cert graph that hangs off of
// them.
type TenantHandler struct {
	audit      *audit.Writer
	store      *rbum.Store
	credential *credential.Service
	sessions   *session.Service
	cache      *cache.Cache

	spiManagementMode   bool
	migrationsTenantDir string
}

// NewTenantHandler builds the tenant scope's handler.
func NewTenantHandler(d Deps) *TenantHandler {
	return &TenantHandler{
		audit:               d.Audit,
		store:               d.Store,
		credential:          d.Credential,
		sessions:            d.Sessions,
		cache:               d.Cache,
		spiManagementMode:   d.SPIManagementMode,
		migrationsTenantDir: d.MigrationsTenantDir,
	}
}

// Register attaches every /ct route to r, all behind requireToken.
func (h *TenantHandler) Register(r chi.Router, requireToken func(http.Handler) http.Handler) {
	r.Use(requireToken)

	r.Post("/item", h.handleAddItem)
	r.Get("/item", h.handleListItems)
	r.Get("/item/{id}", h.handleGetItem)
	r.Put("/item/{id}", h.handleModifyItem)
	r.Delete("/item/{id}", h.handleDeleteItem)

	r.Delete("/app/{id}", h.handleDeleteApp)

	r.Post("/rel", h.handleAddRel)
	r.Get("/rel", h.handleFindRels)
	r.Delete("/rel/{id}", h.handleDeleteRel)

	r.Post("/cert", h.handleAddCert)

	r.Post("/backend", h.handleProvisionBackend)
}

type addItemRequest struct {
	Code            string         `json:"code"`
	Name            string         `json:"name" validate:"required"`
	RelRbumKindID   string         `json:"rel_rbum_kind_id" validate:"required"`
	RelRbumDomainID string         `json:"rel_rbum_domain_id" validate:"required"`
	OwnPaths        string         `json:"own_paths" validate:"required"`
	ScopeLevel      int            `json:"scope_level"`
	Disabled        bool           `json:"disabled"`
	Ext             map[string]any `json:"ext"`
}

func (h *TenantHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	var req addItemRequest
	if !httpserver.DecodeAndValidate(w, r, "tenant", "add-item", &req) {
		return
	}

	kind, err := h.store.GetKind(r.Context(), req.RelRbumKindID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	item, err := h.store.AddItemWithExt(r.Context(), rbum.AddItemReq{
		Code:            req.Code,
		Name:            req.Name,
		RelRbumKindID:   req.RelRbumKindID,
		RelRbumDomainID: req.RelRbumDomainID,
		OwnPaths:        req.OwnPaths,
		Owner:           id.AccountID,
		ScopeLevel:      rbum.ScopeLevel(req.ScopeLevel),
		Disabled:        req.Disabled,
	}, kind.ExtTableName, req.Ext)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		h.audit.Log(audit.Entry{OwnPaths: req.OwnPaths, AccountID: id.AccountID, Action: "add_item", Kind: req.RelRbumKindID, ItemID: item.ID, At: time.Now().UTC()})
	}

	httpserver.Respond(w, http.StatusCreated, "tenant", "add-item", item)
}

func (h *TenantHandler) handleListItems(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	q := r.URL.Query()
	filter := rbum.BasicFilterReq{
		OwnPaths:        id.Context.TenantID,
		WithSubOwnPaths: q.Get("with_sub") == "true",
		Code:            q.Get("code"),
		NameLike:        q.Get("name_like"),
		RelRbumKindID:   q.Get("rel_rbum_kind_id"),
		RelRbumDomainID: q.Get("rel_rbum_domain_id"),
	}

	var relFilters []rbum.ItemRelFilterReq
	if relID := q.Get("rel_id"); relID != "" {
		relFilters = append(relFilters, rbum.ItemRelFilterReq{
			Tag:       q.Get("rel_tag"),
			RelRbumID: relID,
			Dir:       rbum.RelDirection(q.Get("rel_dir")),
		})
	}
	var setFilter *rbum.SetItemRelFilterReq
	if setID := q.Get("set_id"); setID != "" {
		setFilter = &rbum.SetItemRelFilterReq{
			RelRbumSetID:  setID,
			SysCodePrefix: q.Get("sys_code_prefix"),
		}
	}

	items, err := h.store.FindItemsFiltered(r.Context(), id.Context.TenantID, filter, relFilters, setFilter)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondErr(w, errBadPagination(err))
		return
	}
	page := paginateItems(items, params)
	httpserver.Respond(w, http.StatusOK, "tenant", "list-item", page)
}

func paginateItems(items []rbum.Item, params httpserver.OffsetParams) httpserver.OffsetPage[rbum.Item] {
	total := len(items)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	return httpserver.NewOffsetPage(items[start:end], params, total)
}

func (h *TenantHandler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "tenant", "get-item", item)
}

type modifyItemRequest struct {
	Name     *string `json:"name"`
	Code     *string `json:"code"`
	Disabled *bool   `json:"disabled"`
}

func (h *TenantHandler) handleModifyItem(w http.ResponseWriter, r *http.Request) {
	var req modifyItemRequest
	if !httpserver.DecodeAndValidate(w, r, "tenant", "modify-item", &req) {
		return
	}

	item, err := h.store.ModifyItem(r.Context(), chi.URLParam(r, "id"), req.Name, req.Code, req.Disabled)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	h.refreshRoleInfo(r, item)

	httpserver.Respond(w, http.StatusOK, "tenant", "modify-item", item)
}

// refreshRoleInfo re-caches the role-info summary when the modified item
// is a role, so policy readers see the change without a DB round trip.
func (h *TenantHandler) refreshRoleInfo(r *http.Request, item *rbum.Item) {
	if h.cache == nil {
		return
	}
	roleKind, err := h.store.GetKindByCode(r.Context(), rbum.KindRole)
	if err != nil || item.RelRbumKindID != roleKind.ID {
		return
	}
	_ = h.cache.SetRoleInfo(r.Context(), cache.RoleSummary{
		ID:       item.ID,
		Code:     item.Code,
		Name:     item.Name,
		OwnPaths: item.OwnPaths,
		Disabled: item.Disabled,
	})
}

func (h *TenantHandler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if err := h.store.DeleteItemWithAllRels(r.Context(), itemID); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	// Dropping role-info for a non-role id is a harmless no-op.
	if h.cache != nil {
		_ = h.cache.DelRoleInfo(r.Context(), itemID)
	}

	if h.audit != nil {
		if id := httpserver.IdentityFromContext(r.Context()); id != nil {
			h.audit.Log(audit.Entry{AccountID: id.AccountID, Action: "delete_item", ItemID: itemID, At: time.Now().UTC()})
		}
	}

	httpserver.Respond(w, http.StatusOK, "tenant", "delete-item", nil)
}

// handleDeleteApp runs the app teardown fan-out: every table
// holding app-scoped rows is cleared in dependency order inside one
// transaction, then — after commit — the app's cached session state is
// dropped.
func (h *TenantHandler) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")

	item, err := h.store.GetItem(r.Context(), appID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	appKind, err := h.store.GetKindByCode(r.Context(), rbum.KindApp)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	if item.RelRbumKindID != appKind.ID {
		httpserver.RespondErr(w, errBadRequest("tenant", "delete-app", "item is not an app"))
		return
	}

	if err := h.store.DeleteAppWithAllRels(r.Context(), appID, item.OwnPaths); err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	if err := h.sessions.DeleteTokensAndContextsByTenantOrApp(r.Context(), appID, true); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		if id := httpserver.IdentityFromContext(r.Context()); id != nil {
			h.audit.Log(audit.Entry{OwnPaths: item.OwnPaths, AccountID: id.AccountID, Action: "delete_app", Kind: rbum.KindApp, ItemID: appID, At: time.Now().UTC()})
		}
	}

	httpserver.Respond(w, http.StatusOK, "tenant", "delete-app", nil)
}

type addRelRequest struct {
	Tag          string `json:"tag" validate:"required"`
	FromRbumKind string `json:"from_rbum_kind" validate:"required"`
	FromRbumID   string `json:"from_rbum_id" validate:"required"`
	ToRbumItemID string `json:"to_rbum_item_id" validate:"required"`
	Ext          string `json:"ext"`
	OwnPaths     string `json:"own_paths" validate:"required"`
	ScopeLevel   int    `json:"scope_level"`
}

func (h *TenantHandler) handleAddRel(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	var req addRelRequest
	if !httpserver.DecodeAndValidate(w, r, "tenant", "add-rel", &req) {
		return
	}

	rel, err := h.store.AddRel(r.Context(), rbum.AddRelReq{
		Tag:          req.Tag,
		FromRbumKind: rbum.RelRbumKind(req.FromRbumKind),
		FromRbumID:   req.FromRbumID,
		ToRbumItemID: req.ToRbumItemID,
		Ext:          req.Ext,
		OwnPaths:     req.OwnPaths,
		Owner:        id.AccountID,
		ScopeLevel:   rbum.ScopeLevel(req.ScopeLevel),
	})
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		h.audit.Log(audit.Entry{OwnPaths: req.OwnPaths, AccountID: id.AccountID, Action: "add_rel", ItemID: rel.ID, At: time.Now().UTC()})
	}

	httpserver.Respond(w, http.StatusCreated, "tenant", "add-rel", rel)
}

func (h *TenantHandler) handleFindRels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tag := q.Get("tag")
	if tag == "" {
		httpserver.RespondErr(w, errBadRequest("tenant", "find-rel", "tag is required"))
		return
	}

	if toID := q.Get("to_rbum_item_id"); toID != "" {
		rels, err := h.store.FindRelsByTo(r.Context(), tag, toID)
		if err != nil {
			httpserver.RespondErr(w, err)
			return
		}
		httpserver.Respond(w, http.StatusOK, "tenant", "find-rel", rels)
		return
	}

	fromKind := rbum.RelRbumKind(q.Get("from_rbum_kind"))
	fromID := q.Get("from_rbum_id")
	rels, err := h.store.FindRelsByFrom(r.Context(), tag, fromKind, fromID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "tenant", "find-rel", rels)
}

func (h *TenantHandler) handleDeleteRel(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteRel(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "tenant", "delete-rel", nil)
}

type addCertRequest struct {
	Ak                string `json:"ak" validate:"required"`
	Sk                string `json:"sk"`
	Kind              string `json:"kind" validate:"required"`
	Supplier          string `json:"supplier"`
	RelRbumKind       string `json:"rel_rbum_kind" validate:"required"`
	RelRbumID         string `json:"rel_rbum_id" validate:"required"`
	RelRbumCertConfID string `json:"rel_rbum_cert_conf_id" validate:"required"`
	OwnPaths          string `json:"own_paths" validate:"required"`
	ScopeLevel        int    `json:"scope_level"`
}

func (h *TenantHandler) handleAddCert(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	var req addCertRequest
	if !httpserver.DecodeAndValidate(w, r, "tenant", "add-cert", &req) {
		return
	}

	cert, err := h.credential.AddCert(r.Context(), credential.AddCertReq{
		Ak:                req.Ak,
		Sk:                req.Sk,
		Kind:              req.Kind,
		Supplier:          req.Supplier,
		RelRbumKind:       rbum.RelRbumKind(req.RelRbumKind),
		RelRbumID:         req.RelRbumID,
		RelRbumCertConfID: req.RelRbumCertConfID,
		OwnPaths:          req.OwnPaths,
		Owner:             id.AccountID,
		ScopeLevel:        rbum.ScopeLevel(req.ScopeLevel),
	})
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		h.audit.Log(audit.Entry{OwnPaths: req.OwnPaths, AccountID: id.AccountID, Action: "add_cert", Kind: req.Kind, ItemID: cert.ID, At: time.Now().UTC()})
	}

	httpserver.Respond(w, http.StatusCreated, "tenant", "add-cert", cert)
}
