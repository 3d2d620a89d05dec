// Package session implements token minting/eviction and account
// context assembly, backed by the cache surface of pkg/cache.
package session

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// Claims are the claims embedded in a self-issued bearer token. The token's
// signature is defense in depth only — the cache entry keyed on the
// serialized token is the actual source of truth for "is this token still
// live".
type Claims struct {
	TokenID   string `json:"jti"`
	AccountID string `json:"sub"`
	TenantID  string `json:"tenant_id"`
	AppID     string `json:"app_id,omitempty"`
	Kind      string `json:"kind"`
}

// Issuer mints and verifies self-signed HS256 bearer tokens.
type Issuer struct {
	signingKey []byte
}

// NewIssuer builds an Issuer from a secret of at least 32 bytes.
func NewIssuer(secret string) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	return &Issuer{signingKey: []byte(secret)}, nil
}

// GenerateDevSecret produces a random signing secret for
// local/testing use where no operator-provided secret exists.
func GenerateDevSecret() string {
	return uuid.New().String() + uuid.New().String()
}

// Mint issues a signed bearer token for the given claims with ttl.
func (i *Issuer) Mint(c Claims, ttl time.Duration) (string, error) {
	if c.TokenID == "" {
		c.TokenID = uuid.New().String()
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: i.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "session", "mint", "creating signer", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		ID:        c.TokenID,
		Subject:   c.AccountID,
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "keyward",
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(c).Serialize()
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "session", "mint", "signing token", err)
	}
	return token, nil
}

// Verify checks the token's signature and expiry and returns its claims.
// Callers must still consult the cache (pkg/cache.GetTokenInfo) before
// trusting the token as live — signature validity alone is not sufficient.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, iamerr.Unauthorized("session", "verify", "malformed token")
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(i.signingKey, &registered, &custom); err != nil {
		return nil, iamerr.Unauthorized("session", "verify", "invalid token signature")
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: "keyward",
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, iamerr.Unauthorized("session", "verify", "token expired or not yet valid")
	}

	return &custom, nil
}
