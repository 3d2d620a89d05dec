package httpserver

import (
	"context"
	"net/http"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/session"
)

// Identity is the authenticated caller a RequireToken middleware stashes
// into the request context for handlers to read.
type Identity struct {
	AccountID string
	Context   cache.AccountContext
}

type identityKey struct{}

// IdentityFromContext extracts the Identity a RequireToken middleware
// attached, or nil if the request was never authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// RequireToken authenticates every request on this router via the given
// bearer-token header (Bios-Token by default), rejecting with 401 when
// absent or invalid. On success it resolves the account's tenant/app
// context for appHeader's value (empty for tenant-level) and attaches
// both to the request context.
func RequireToken(sessions *session.Service, tokenHeader, appHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(tokenHeader)
			if token == "" {
				RespondErr(w, iamerr.Unauthorized("session", "require-token", "missing bearer token"))
				return
			}

			info, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				RespondErr(w, err)
				return
			}

			actx, err := sessions.GetAccountContext(r.Context(), info.AccountID, r.Header.Get(appHeader))
			if err != nil {
				RespondErr(w, err)
				return
			}

			id := &Identity{AccountID: info.AccountID, Context: actx}
			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
