// Package oauth2 implements the authorization-code grant. It defines its
// own server-side DTOs and does not import golang.org/x/oauth2 — this repo
// is the party issuing tokens, not consuming them.
package oauth2

import "time"

// Client is a registered OAuth2 client, stored as an RbumCert of kind
// "oauth2-client" by the caller —
// this struct is the decoded view the oauth2 service operates on.
type Client struct {
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	AccessTokenExpireSec  int64
}

// Defaults for the global TTL knobs.
const (
	DefaultAuthCodeExpireSec     = 600
	DefaultRefreshTokenExpireSec = 30 * 24 * 60 * 60
)

// AccessTokenTTL returns the client's configured access-token lifetime as a Duration.
func (c Client) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireSec) * time.Second
}
