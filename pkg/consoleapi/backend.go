package consoleapi

import (
	"encoding/json"
	"net/http"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/spi"
)

type provisionBackendRequest struct {
	Kind    string          `json:"kind" validate:"required"`
	DSN     string          `json:"dsn" validate:"required"`
	Ext     json.RawMessage `json:"ext"`
	OwnerID string          `json:"owner_id" validate:"required"`
	Private bool            `json:"private"`
}

// handleProvisionBackend decodes a backend cert, derives the tenant's
// isolation schema, creates it (management mode only), then applies the
// tenant migration set against that schema before handing the connection
// back.
func (h *TenantHandler) handleProvisionBackend(w http.ResponseWriter, r *http.Request) {
	var req provisionBackendRequest
	if !httpserver.DecodeAndValidate(w, r, "tenant", "provision-backend", &req) {
		return
	}

	inst, err := spi.Init(r.Context(), spi.BsCert{
		Kind: spi.Kind(req.Kind),
		DSN:  req.DSN,
		Ext:  req.Ext,
	}, spi.Owner{ID: req.OwnerID}, req.Private, h.spiManagementMode)
	if err != nil {
		httpserver.RespondErr(w, err)
		return
	}
	defer inst.Close()

	if h.spiManagementMode {
		if err := spi.RunSchemaMigrations(req.DSN, h.migrationsTenantDir); err != nil {
			httpserver.RespondErr(w, err)
			return
		}
	}

	httpserver.Respond(w, http.StatusCreated, "tenant", "provision-backend", map[string]string{
		"schema": inst.Schema,
		"kind":   string(inst.Kind),
	})
}
