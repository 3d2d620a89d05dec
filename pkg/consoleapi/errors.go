package consoleapi

import "github.com/grayforge/keyward/pkg/iamerr"

// errUnauthenticated is returned by any handler reached without a valid
// Identity in context — should be unreachable in practice since every such
// route is mounted behind RequireToken, but handlers check defensively
// rather than trust middleware wiring blindly.
func errUnauthenticated() error {
	return iamerr.Unauthorized("consoleapi", "require-identity", "no authenticated identity on request")
}

// unsupportedGrant renders the OAuth2 token endpoint's error for a
// grant_type value this handler does not route to the oauth2 service.
func unsupportedGrant(grantType string) error {
	return iamerr.BadRequest("oauth2", "grant", "unsupported_grant_type: "+grantType)
}

func errBadRequest(domain, op, message string) error {
	return iamerr.BadRequest(domain, op, message)
}

func errBadPagination(err error) error {
	return iamerr.BadRequest("tenant", "list-item", err.Error())
}
