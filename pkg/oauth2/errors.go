package oauth2

import "github.com/grayforge/keyward/pkg/iamerr"

// The narrow set of OAuth2 error codes every failure maps onto, surfaced as iamerr.Error.Message so handlers can render the
// standard `{error, error_description}` OAuth2 error body.
const (
	ErrInvalidClient         = "invalid_client"
	ErrInvalidGrant          = "invalid_grant"
	ErrUnsupportedGrantType  = "unsupported_grant_type"
	ErrInvalidRedirectURI    = "invalid_redirect_uri"
)

func errInvalidClient() error {
	return iamerr.Unauthorized("oauth2", "client", ErrInvalidClient)
}

func errInvalidGrant(detail string) error {
	return iamerr.BadRequest("oauth2", "grant", ErrInvalidGrant+": "+detail)
}

func errUnsupportedGrantType(grantType string) error {
	return iamerr.BadRequest("oauth2", "grant", ErrUnsupportedGrantType+": "+grantType)
}

func errInvalidRedirectURI() error {
	return iamerr.BadRequest("oauth2", "authorize", ErrInvalidRedirectURI)
}
