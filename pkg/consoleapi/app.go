package consoleapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/resource"
)

// AppHandler implements the /ca scope: application-side resource
// registration onto the trie every gateway node refreshes from.
type AppHandler struct {
	trie  *resource.Trie
	cache *cache.Cache
}

// NewAppHandler builds the app scope's handler.
func NewAppHandler(d Deps) *AppHandler {
	return &AppHandler{trie: d.Trie, cache: d.Cache}
}

// Register attaches every /ca route to r, all behind requireToken.
func (h *AppHandler) Register(r chi.Router, requireToken func(http.Handler) http.Handler) {
	r.Use(requireToken)

	r.Post("/resource", h.handleRegister)
	r.Delete("/resource", h.handleUnregister)
	r.Get("/resource/match", h.handleMatch)
}

type authFacetsRequest struct {
	Accounts string `json:"accounts"`
	Roles    string `json:"roles"`
	Groups   string `json:"groups"`
	Apps     string `json:"apps"`
	Tenants  string `json:"tenants"`
}

type registerResourceRequest struct {
	URI            string             `json:"uri" validate:"required"`
	NeedDoubleAuth bool               `json:"need_double_auth"`
	NeedCryptoReq  bool               `json:"need_crypto_req"`
	NeedCryptoResp bool               `json:"need_crypto_resp"`
	Auth           *authFacetsRequest `json:"auth"`
}

func (h *AppHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerResourceRequest
	if !httpserver.DecodeAndValidate(w, r, "app", "register-resource", &req) {
		return
	}

	leaf := resource.LeafInfo{
		NeedDoubleAuth: req.NeedDoubleAuth,
		NeedCryptoReq:  req.NeedCryptoReq,
		NeedCryptoResp: req.NeedCryptoResp,
	}
	if req.Auth != nil {
		leaf.Auth = &resource.AuthFacets{
			Accounts: req.Auth.Accounts,
			Roles:    req.Auth.Roles,
			Groups:   req.Auth.Groups,
			Apps:     req.Auth.Apps,
			Tenants:  req.Auth.Tenants,
		}
	}

	h.trie.Register(req.URI, leaf)

	if err := h.publishSnapshot(r, req.URI, "register"); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, "app", "register-resource", nil)
}

func (h *AppHandler) handleUnregister(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		httpserver.RespondErr(w, errBadRequest("app", "unregister-resource", "uri is required"))
		return
	}

	h.trie.Unregister(uri)

	if err := h.publishSnapshot(r, uri, "unregister"); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, "app", "unregister-resource", nil)
}

// publishSnapshot marks uri as changed and, if a cache is wired, republishes
// the whole trie so other nodes' periodic refresh picks up this mutation
// without needing to replay individual register/unregister calls.
func (h *AppHandler) publishSnapshot(r *http.Request, uri, action string) error {
	if h.cache == nil {
		return nil
	}
	ctx := r.Context()
	if err := h.cache.PublishResourceChanged(ctx, uri, action); err != nil {
		return err
	}
	snapshot, err := json.Marshal(h.trie.Snapshot())
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "app", "register-resource", "marshaling trie snapshot", err)
	}
	return h.cache.SetResourceSnapshot(ctx, string(snapshot))
}

func (h *AppHandler) handleMatch(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		httpserver.RespondErr(w, errBadRequest("app", "match-resource", "uri is required"))
		return
	}
	httpserver.Respond(w, http.StatusOK, "app", "match-resource", h.trie.Match(uri))
}
