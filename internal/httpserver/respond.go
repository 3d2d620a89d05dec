// Package httpserver assembles the console HTTP surface: a chi
// router with request-id/logging/metrics middleware, the `{code, message,
// data}` response envelope, and request decode/validate/pagination helpers.
package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// Envelope is the response shape every console endpoint returns: code follows "<3-digit-http>-<domain>-<op>", message is
// human-readable, data carries the payload (nil on error).
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Respond writes a success envelope with the given HTTP status.
func Respond(w http.ResponseWriter, status int, domain, op string, data any) {
	writeEnvelope(w, status, Envelope{
		Code:    httpOpCode(status, domain, op),
		Message: "ok",
		Data:    data,
	})
}

// RespondAccepted writes a 202 envelope carrying an asynchronous task id.
func RespondAccepted(w http.ResponseWriter, domain, op, taskID string) {
	Respond(w, http.StatusAccepted, domain, op, map[string]string{"task_id": taskID})
}

// RespondErr renders a typed *iamerr.Error as its response envelope.
func RespondErr(w http.ResponseWriter, err error) {
	if e, ok := iamerr.As(err); ok {
		writeEnvelope(w, e.Kind.HTTPStatus(), Envelope{Code: e.Code(), Message: e.Message})
		return
	}
	writeEnvelope(w, http.StatusInternalServerError, Envelope{
		Code:    "500-internal-unknown",
		Message: err.Error(),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encoding response envelope", "error", err)
	}
}

func httpOpCode(status int, domain, op string) string {
	return fmt.Sprintf("%d-%s-%s", status, domain, op)
}
