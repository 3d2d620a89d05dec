package consoleapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/credential"
	"github.com/grayforge/keyward/pkg/rbum"
	"github.com/grayforge/keyward/pkg/resource"
)

// InterfaceHandler implements the /ci scope: the machine-to-machine checks
// a gateway sidecar (or any service embedding pkg/gateway.Pipeline over the
// network instead of in-process) calls directly, without passport-style
// bearer-token authentication.
type InterfaceHandler struct {
	eval       *resource.Evaluator
	store      *rbum.Store
	credential *credential.Service
}

// NewInterfaceHandler builds the interface scope's handler.
func NewInterfaceHandler(d Deps) *InterfaceHandler {
	return &InterfaceHandler{eval: d.Resource, store: d.Store, credential: d.Credential}
}

// Register attaches every /ci route to r.
func (h *InterfaceHandler) Register(r chi.Router) {
	r.Post("/do-auth", h.handleDoAuth)
	r.Post("/validate-cert", h.handleValidateCert)
}

type doAuthRequest struct {
	Action    string `json:"action" validate:"required"`
	URI       string `json:"uri" validate:"required"`
	AccountID string `json:"account_id"`
	Roles     []string `json:"roles"`
	Groups    []string `json:"groups"`
	AppID     string `json:"app_id"`
	TenantID  string `json:"tenant_id"`
}

func (h *InterfaceHandler) handleDoAuth(w http.ResponseWriter, r *http.Request) {
	var req doAuthRequest
	if !httpserver.DecodeAndValidate(w, r, "interface", "do-auth", &req) {
		return
	}

	leaf, err := h.eval.DoAuth(r.Context(), req.Action, req.URI, resource.AuthContext{
		AccountID: req.AccountID,
		Roles:     req.Roles,
		Groups:    req.Groups,
		AppID:     req.AppID,
		TenantID:  req.TenantID,
	})
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, "interface", "do-auth", map[string]any{"allow": true, "leaf": leaf})
}

type validateCertRequest struct {
	Ak       string `json:"ak" validate:"required"`
	Sk       string `json:"sk" validate:"required"`
	Kind     string `json:"kind" validate:"required"`
	OwnPaths string `json:"own_paths" validate:"required"`
}

func (h *InterfaceHandler) handleValidateCert(w http.ResponseWriter, r *http.Request) {
	var req validateCertRequest
	if !httpserver.DecodeAndValidate(w, r, "interface", "validate-cert", &req) {
		return
	}

	conf, err := h.store.FindCertConfByKind(r.Context(), req.Kind, req.OwnPaths, nil)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	cert, err := h.credential.Validate(r.Context(), req.Ak, req.Sk, conf)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, "interface", "validate-cert", map[string]string{
		"rel_rbum_id":   cert.RelRbumID,
		"rel_rbum_kind": string(cert.RelRbumKind),
		"status":        string(cert.Status),
	})
}
