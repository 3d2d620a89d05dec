package consoleapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/audit"
	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/credential"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/rbum"
	"github.com/grayforge/keyward/pkg/session"
)

// PassportHandler implements the self-service /cp scope: login, logout,
// and an authenticated caller's own credential/context views.
type PassportHandler struct {
	audit      *audit.Writer
	store      *rbum.Store
	credential *credential.Service
	sessions   *session.Service
}

// NewPassportHandler builds the passport scope's handler.
func NewPassportHandler(d Deps) *PassportHandler {
	return &PassportHandler{audit: d.Audit, store: d.Store, credential: d.Credential, sessions: d.Sessions}
}

// Register attaches every /cp route to r.
func (h *PassportHandler) Register(r chi.Router, requireToken func(http.Handler) http.Handler) {
	r.Post("/login/oauth2", h.handleLoginOAuth2)
	r.Post("/login/{kind}", h.handleLogin)
	r.Post("/vcode/{kind}", h.handleSendVCode)
	r.Post("/logout", h.handleLogout)
	r.With(requireToken).Get("/cert", h.handleListOwnCerts)
	r.With(requireToken).Get("/context", h.handleWhoAmI)
}

// loginRequest is the body of POST /cp/login/{kind}.
type loginRequest struct {
	Ak       string `json:"ak" validate:"required"`
	Sk       string `json:"sk" validate:"required"`
	OwnPaths string `json:"own_paths" validate:"required"`
	AppID    string `json:"app_id"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *PassportHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, "passport", "login", &req) {
		return
	}

	ctx := r.Context()
	conf, err := h.store.FindCertConfByKind(ctx, kind, req.OwnPaths, nil)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	cert, err := h.credential.Validate(ctx, req.Ak, req.Sk, conf)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	tenantID, _ := rbum.GetPathItem(1, req.OwnPaths)

	actx, err := h.assembleContext(ctx, cert.RelRbumID, tenantID, req.AppID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	if err := h.sessions.StoreAccountContext(ctx, actx); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	ttl := time.Duration(conf.ExpireSec) * time.Second
	token, err := h.sessions.AddToken(ctx, cert.RelRbumID, tenantID, req.AppID, "login", ttl, conf.CoexistNum)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"ak": req.Ak, "kind": kind})
		h.audit.Log(audit.Entry{OwnPaths: req.OwnPaths, AccountID: cert.RelRbumID, Action: "login", Kind: kind, ItemID: cert.RelRbumID, Detail: detail, At: time.Now().UTC()})
	}

	httpserver.Respond(w, http.StatusOK, "passport", "login", loginResponse{AccessToken: token, ExpiresIn: conf.ExpireSec})
}

type sendVCodeRequest struct {
	Ak       string `json:"ak" validate:"required"`
	OwnPaths string `json:"own_paths" validate:"required"`
}

// handleSendVCode issues a one-time code for a dynamic credential kind
// (phone/mail vcode flows); the code travels through the configured
// sender, never the HTTP response.
func (h *PassportHandler) handleSendVCode(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var req sendVCodeRequest
	if !httpserver.DecodeAndValidate(w, r, "passport", "send-vcode", &req) {
		return
	}

	ctx := r.Context()
	conf, err := h.store.FindCertConfByKind(ctx, kind, req.OwnPaths, nil)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	if err := h.credential.SendVCode(ctx, req.Ak, conf); err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "passport", "send-vcode", nil)
}

// loginOAuth2Request is the body of POST /cp/login/oauth2: redeem an
// external supplier's authorization code and log in the bound account.
type loginOAuth2Request struct {
	Supplier string `json:"supplier" validate:"required"`
	Code     string `json:"code" validate:"required"`
	OwnPaths string `json:"own_paths" validate:"required"`
	AppID    string `json:"app_id"`
}

func (h *PassportHandler) handleLoginOAuth2(w http.ResponseWriter, r *http.Request) {
	var req loginOAuth2Request
	if !httpserver.DecodeAndValidate(w, r, "passport", "login-oauth2", &req) {
		return
	}

	ctx := r.Context()
	supplierCert, err := h.store.GetCertByAk(ctx, credential.KindOAuth2Supplier, req.Supplier)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	sc, err := credential.ParseSupplierConfig([]byte(supplierCert.Supplier))
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	sc.ClientSecret = supplierCert.Sk

	exchanger := credential.SupplierExchanger{}
	token, err := exchanger.Exchange(ctx, sc, req.Code)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	subject, err := exchanger.FetchSubject(ctx, sc, token)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	binding, err := h.store.GetCertByAk(ctx, credential.KindOAuth2Account, req.Supplier+":"+subject)
	if err != nil {
		httpserver.RespondErr(w, iamerr.Unauthorized("passport", "login-oauth2", "no account is bound to this external identity"))
		return
	}

	tenantID, _ := rbum.GetPathItem(1, req.OwnPaths)
	actx, err := h.assembleContext(ctx, binding.RelRbumID, tenantID, req.AppID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	if err := h.sessions.StoreAccountContext(ctx, actx); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	conf, err := h.store.FindCertConfByKind(ctx, credential.KindOAuth2Account, req.OwnPaths, nil)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	ttl := time.Duration(conf.ExpireSec) * time.Second
	sessionToken, err := h.sessions.AddToken(ctx, binding.RelRbumID, tenantID, req.AppID, "login", ttl, conf.CoexistNum)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"supplier": req.Supplier})
		h.audit.Log(audit.Entry{OwnPaths: req.OwnPaths, AccountID: binding.RelRbumID, Action: "login_oauth2", Kind: credential.KindOAuth2Account, ItemID: binding.RelRbumID, Detail: detail, At: time.Now().UTC()})
	}

	httpserver.Respond(w, http.StatusOK, "passport", "login-oauth2", loginResponse{AccessToken: sessionToken, ExpiresIn: conf.ExpireSec})
}

// assembleContext gathers an account's live role bindings and group
// memberships into the context cached under the account-info hash. Role
// bindings with an attached rel-env are honored only while the envelope
// permits them (time-bounded role grants).
func (h *PassportHandler) assembleContext(ctx context.Context, accountID, tenantID, appID string) (cache.AccountContext, error) {
	if appID != "" {
		bindings, err := h.store.FindRelsByFrom(ctx, rbum.RelTagAccountApp, rbum.RelKindItem, accountID)
		if err != nil {
			return cache.AccountContext{}, err
		}
		bound := false
		for _, b := range bindings {
			if b.ToRbumItemID == appID {
				bound = true
				break
			}
		}
		if !bound {
			return cache.AccountContext{}, iamerr.Forbidden("passport", "login", "account is not bound to the requested app")
		}
	}

	rels, err := h.store.FindRelsByFrom(ctx, rbum.RelTagAccountRole, rbum.RelKindItem, accountID)
	if err != nil {
		return cache.AccountContext{}, err
	}

	now := time.Now().UTC()
	var roles []string
	for _, rel := range rels {
		live, err := h.store.RelLive(ctx, rel.ID, now)
		if err != nil {
			return cache.AccountContext{}, err
		}
		if live {
			roles = append(roles, rel.ToRbumItemID)
		}
	}

	groups, err := h.store.FindGroupSysCodesByItem(ctx, accountID)
	if err != nil {
		return cache.AccountContext{}, err
	}

	return cache.AccountContext{
		AccountID: accountID,
		TenantID:  tenantID,
		AppID:     appID,
		Roles:     roles,
		Groups:    groups,
		IsGlobal:  tenantID == "",
	}, nil
}

type logoutRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *PassportHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !httpserver.DecodeAndValidate(w, r, "passport", "logout", &req) {
		return
	}

	ctx := r.Context()
	info, err := h.sessions.Authenticate(ctx, req.Token)
	if err != nil {
		// logging out an already-invalid token is not an error.
		httpserver.Respond(w, http.StatusOK, "passport", "logout", nil)
		return
	}

	if err := h.sessions.Logout(ctx, info.AccountID, req.Token); err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	if h.audit != nil {
		h.audit.Log(audit.Entry{AccountID: info.AccountID, Action: "logout", At: time.Now().UTC()})
	}

	httpserver.Respond(w, http.StatusOK, "passport", "logout", nil)
}

func (h *PassportHandler) handleListOwnCerts(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}

	certs, err := h.store.FindCertsByAnchor(r.Context(), rbum.RelKindItem, id.AccountID)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, "passport", "list-cert", certs)
}

func (h *PassportHandler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id := httpserver.IdentityFromContext(r.Context())
	if id == nil {
		httpserver.RespondErr(w, errUnauthenticated())
		return
	}
	httpserver.Respond(w, http.StatusOK, "passport", "whoami", id.Context)
}
