package consoleapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/oauth2"
)

// OAuth2Handler implements the /oauth2 scope: the authorization-code grant
// and refresh-token endpoints plus the server public-key config.
type OAuth2Handler struct {
	service *oauth2.Service
}

// NewOAuth2Handler builds the oauth2 scope's handler.
func NewOAuth2Handler(d Deps) *OAuth2Handler {
	return &OAuth2Handler{service: d.OAuth2}
}

// Register attaches every /oauth2 route to r.
func (h *OAuth2Handler) Register(r chi.Router) {
	r.Post("/authorize", h.handleAuthorize)
	r.Post("/token", h.handleToken)
	r.Get("/server-config", h.handleServerConfig)
}

type authorizeRequest struct {
	ResponseType string `json:"response_type" validate:"required"`
	ClientID     string `json:"client_id" validate:"required"`
	RedirectURI  string `json:"redirect_uri" validate:"required"`
	Scope        string `json:"scope"`
	State        string `json:"state"`
	PrincipalCtx string `json:"principal_ctx" validate:"required"`
}

func (h *OAuth2Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !httpserver.DecodeAndValidate(w, r, "oauth2", "authorize", &req) {
		return
	}

	code, err := h.service.GenerateCode(r.Context(), req.ResponseType, req.ClientID, req.RedirectURI, req.Scope, req.State, req.PrincipalCtx)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, "oauth2", "authorize", map[string]string{"code": code, "state": req.State})
}

type tokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required"`
	Code         string `json:"code"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	RefreshToken string `json:"refresh_token"`
}

func (h *OAuth2Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !httpserver.DecodeAndValidate(w, r, "oauth2", "token", &req) {
		return
	}

	var (
		resp oauth2.TokenResponse
		err  error
	)
	switch req.GrantType {
	case "authorization_code":
		resp, err = h.service.VerifyCodeAndGenerateToken(r.Context(), req.GrantType, req.Code, req.ClientID, req.ClientSecret, req.RedirectURI)
	case "refresh_token":
		resp, err = h.service.RefreshToken(r.Context(), req.GrantType, req.ClientID, req.RefreshToken)
	default:
		httpserver.RespondErr(w, unsupportedGrant(req.GrantType))
		return
	}
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, "oauth2", "token", resp)
}

func (h *OAuth2Handler) handleServerConfig(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, "oauth2", "server-config", map[string]string{
		"authorization_endpoint": "/oauth2/authorize",
		"token_endpoint":         "/oauth2/token",
		"grant_types_supported":  "authorization_code,refresh_token",
	})
}
