package consoleapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/gateway"
)

// GatewayHandler exposes the full five-step gateway authenticator pipeline
// over
// HTTP so a reverse-proxy sidecar that terminates the actual upstream
// connection can delegate the auth decision to this process instead of
// embedding pkg/gateway.Pipeline in its own binary.
type GatewayHandler struct {
	pipeline *gateway.Pipeline
}

// NewGatewayHandler builds the /ci/auth handler.
func NewGatewayHandler(pipeline *gateway.Pipeline) *GatewayHandler {
	return &GatewayHandler{pipeline: pipeline}
}

// Register attaches the gateway-auth route to r.
func (h *GatewayHandler) Register(r chi.Router) {
	r.Post("/auth", h.handleAuth)
}

type gatewayAuthRequest struct {
	Scheme  string            `json:"scheme"`
	Method  string            `json:"method" validate:"required"`
	Host    string            `json:"host" validate:"required"`
	Port    int               `json:"port"`
	Path    string            `json:"path" validate:"required"`
	Query   map[string]string `json:"query"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

func (h *GatewayHandler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req gatewayAuthRequest
	if !httpserver.DecodeAndValidate(w, r, "gateway", "auth", &req) {
		return
	}

	resp, err := h.pipeline.Auth(r.Context(), gateway.AuthReq{
		Scheme:  req.Scheme,
		Method:  req.Method,
		Host:    req.Host,
		Port:    req.Port,
		Path:    req.Path,
		Query:   req.Query,
		Headers: req.Headers,
		Body:    req.Body,
	})
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}

	status := http.StatusOK
	if !resp.Allow {
		status = http.StatusForbidden
	}
	httpserver.Respond(w, status, "gateway", "auth", resp)
}
