package oauth2

import (
	"strings"
	"testing"
)

func TestClientAccessTokenTTL(t *testing.T) {
	c := Client{AccessTokenExpireSec: 3600}
	if c.AccessTokenTTL().Seconds() != 3600 {
		t.Errorf("AccessTokenTTL() = %v, want 3600s", c.AccessTokenTTL())
	}
}

func TestErrorConstructorsCarryOAuth2Codes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"invalid client", errInvalidClient(), ErrInvalidClient},
		{"invalid redirect", errInvalidRedirectURI(), ErrInvalidRedirectURI},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.err == nil || c.err.Error() == "" {
				t.Fatalf("expected a non-empty error for %s", c.name)
			}
			if !strings.Contains(c.err.Error(), c.code) {
				t.Errorf("%s error %q does not carry code %q", c.name, c.err.Error(), c.code)
			}
		})
	}

	if got := errInvalidGrant("bad").Error(); got == "" {
		t.Error("expected errInvalidGrant to produce a non-empty message")
	}
	if got := errUnsupportedGrantType("implicit").Error(); got == "" {
		t.Error("expected errUnsupportedGrantType to produce a non-empty message")
	}
}
