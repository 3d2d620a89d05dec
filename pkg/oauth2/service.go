package oauth2

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/session"
)

// Code is the cache-backed authorization-code record. Ctx carries whatever the caller needs to reconstruct
// the authenticated principal when the code is redeemed — opaque to this package.
type Code struct {
	Ctx         string    `json:"ctx"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       string    `json:"scope"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	Used        bool      `json:"used"`
}

// RefreshToken is the cache-backed refresh-token record.
type RefreshToken struct {
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenResponse is the OAuth2 token endpoint's success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// replayWindow is the shortened TTL a used code is re-armed with, so a
// concurrent duplicate redemption gets a detectable invalid_grant instead
// of a generic not-found.
const replayWindow = 60 * time.Second

// ClientLookup resolves a registered client by id (backed by an RbumCert
// of kind oauth2-client at the service layer that wires this package
// together).
type ClientLookup func(ctx context.Context, clientID string) (Client, error)

// Service implements the grant flows on top of the cache surface and
// pkg/session's token issuance.
type Service struct {
	cache       *cache.Cache
	sessions    *session.Service
	lookup      ClientLookup
	authCodeTTL time.Duration
	refreshTTL  time.Duration
}

// NewService wires the OAuth2 service's dependencies. TTLs of 0 fall back
// to the package defaults.
func NewService(c *cache.Cache, sessions *session.Service, lookup ClientLookup, authCodeTTL, refreshTTL time.Duration) *Service {
	if authCodeTTL <= 0 {
		authCodeTTL = DefaultAuthCodeExpireSec * time.Second
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenExpireSec * time.Second
	}
	return &Service{cache: c, sessions: sessions, lookup: lookup, authCodeTTL: authCodeTTL, refreshTTL: refreshTTL}
}

// GenerateCode issues an authorization code for the client.
func (s *Service) GenerateCode(ctx context.Context, responseType, clientID, redirectURI, scope, state, principalCtx string) (string, error) {
	if responseType != "code" {
		return "", errUnsupportedGrantType(responseType)
	}

	client, err := s.lookup(ctx, clientID)
	if err != nil {
		return "", errInvalidClient()
	}
	if client.RedirectURI != redirectURI {
		return "", errInvalidRedirectURI()
	}

	code := uuid.New().String()
	rec := Code{
		Ctx:         principalCtx,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       scope,
		State:       state,
		CreatedAt:   time.Now().UTC(),
		Used:        false,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "oauth2", "generate-code", "marshaling code record", err)
	}
	if err := s.cache.Set(ctx, cache.OAuth2CodeKey(code), string(b), s.authCodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyCodeAndGenerateToken redeems an authorization code for an access
// and refresh token pair, including the replay-window re-arm.
func (s *Service) VerifyCodeAndGenerateToken(ctx context.Context, grantType, code, clientID, clientSecret, redirectURI string) (TokenResponse, error) {
	if grantType != "authorization_code" {
		return TokenResponse{}, errUnsupportedGrantType(grantType)
	}

	client, err := s.lookup(ctx, clientID)
	if err != nil || client.ClientSecret != clientSecret {
		return TokenResponse{}, errInvalidClient()
	}

	key := cache.OAuth2CodeKey(code)
	raw, err := s.cache.Get(ctx, key)
	if err == cache.ErrMiss {
		return TokenResponse{}, errInvalidGrant("code not found or expired")
	}
	if err != nil {
		return TokenResponse{}, err
	}

	var rec Code
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return TokenResponse{}, iamerr.Wrap(iamerr.KindInternal, "oauth2", "verify-code", "unmarshaling code record", err)
	}

	if rec.Used {
		return TokenResponse{}, errInvalidGrant("code already used")
	}
	if rec.ClientID != clientID {
		return TokenResponse{}, errInvalidGrant("code was issued to a different client")
	}
	if redirectURI != "" && rec.RedirectURI != redirectURI {
		return TokenResponse{}, errInvalidGrant("redirect_uri does not match")
	}

	rec.Used = true
	b, err := json.Marshal(rec)
	if err != nil {
		return TokenResponse{}, iamerr.Wrap(iamerr.KindInternal, "oauth2", "verify-code", "marshaling code record", err)
	}
	if err := s.cache.Set(ctx, key, string(b), replayWindow); err != nil {
		return TokenResponse{}, err
	}

	accessToken, err := s.sessions.AddToken(ctx, rec.Ctx, "", "", "oauth2-access", client.AccessTokenTTL(), 0)
	if err != nil {
		return TokenResponse{}, err
	}

	refreshToken := uuid.New().String()
	refreshRec := RefreshToken{
		UserID:    rec.Ctx,
		ClientID:  clientID,
		Scope:     rec.Scope,
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
	}
	rb, err := json.Marshal(refreshRec)
	if err != nil {
		return TokenResponse{}, iamerr.Wrap(iamerr.KindInternal, "oauth2", "verify-code", "marshaling refresh token", err)
	}
	if err := s.cache.Set(ctx, cache.OAuth2RefreshTokenKey(refreshToken), string(rb), s.refreshTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(client.AccessTokenTTL().Seconds()),
		RefreshToken: refreshToken,
		Scope:        rec.Scope,
	}, nil
}

// RefreshToken mints a fresh access token for a live refresh token.
func (s *Service) RefreshToken(ctx context.Context, grantType, clientID, refreshToken string) (TokenResponse, error) {
	if grantType != "refresh_token" {
		return TokenResponse{}, errUnsupportedGrantType(grantType)
	}

	client, err := s.lookup(ctx, clientID)
	if err != nil {
		return TokenResponse{}, errInvalidClient()
	}

	key := cache.OAuth2RefreshTokenKey(refreshToken)
	raw, err := s.cache.Get(ctx, key)
	if err == cache.ErrMiss {
		return TokenResponse{}, errInvalidGrant("refresh token not found or expired")
	}
	if err != nil {
		return TokenResponse{}, err
	}

	var rec RefreshToken
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return TokenResponse{}, iamerr.Wrap(iamerr.KindInternal, "oauth2", "refresh-token", "unmarshaling refresh record", err)
	}
	if rec.ClientID != clientID {
		return TokenResponse{}, errInvalidGrant("refresh token was issued to a different client")
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		return TokenResponse{}, errInvalidGrant("refresh token expired")
	}

	accessToken, err := s.sessions.AddToken(ctx, rec.UserID, "", "", "oauth2-access", client.AccessTokenTTL(), 0)
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(client.AccessTokenTTL().Seconds()),
		RefreshToken: refreshToken,
		Scope:        rec.Scope,
	}, nil
}
