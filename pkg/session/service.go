package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
)

// Service implements token bookkeeping and context assembly on top of
// the cache surface.
type Service struct {
	cache  *cache.Cache
	issuer *Issuer
}

// NewService wires the session subsystem's dependencies.
func NewService(c *cache.Cache, issuer *Issuer) *Service {
	return &Service{cache: c, issuer: issuer}
}

// AddToken mints a bearer token for accountID, writes its cache entry, and
// enforces coexist_num by evicting the oldest live token of the same kind
// when the bound is exceeded.
func (s *Service) AddToken(ctx context.Context, accountID, tenantID, appID, kind string, ttl time.Duration, coexistNum int) (string, error) {
	token, err := s.issuer.Mint(Claims{AccountID: accountID, TenantID: tenantID, AppID: appID, Kind: kind}, ttl)
	if err != nil {
		return "", err
	}

	if err := s.cache.SetTokenInfo(ctx, token, cache.TokenInfo{TokenKind: kind, AccountID: accountID}, ttl); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if err := s.cache.AddAccountRel(ctx, accountID, token, cache.AccountRelEntry{TokenKind: kind, AddTime: now}); err != nil {
		return "", err
	}

	if err := s.evictOverflow(ctx, accountID, kind, coexistNum); err != nil {
		return "", err
	}

	return token, nil
}

// evictOverflow deletes the oldest token(s) of kind beyond coexistNum,
// oldest first by add_time.
func (s *Service) evictOverflow(ctx context.Context, accountID, kind string, coexistNum int) error {
	if coexistNum <= 0 {
		return nil
	}
	rel, err := s.cache.ListAccountRel(ctx, accountID)
	if err != nil {
		return err
	}

	type tokenEntry struct {
		token string
		entry cache.AccountRelEntry
	}
	var kindTokens []tokenEntry
	for tok, e := range rel {
		if e.TokenKind == kind {
			kindTokens = append(kindTokens, tokenEntry{tok, e})
		}
	}
	if len(kindTokens) <= coexistNum {
		return nil
	}

	for len(kindTokens) > coexistNum {
		oldestIdx := 0
		for i := 1; i < len(kindTokens); i++ {
			if kindTokens[i].entry.AddTime.Before(kindTokens[oldestIdx].entry.AddTime) {
				oldestIdx = i
			}
		}
		oldest := kindTokens[oldestIdx]
		if err := s.cache.DelTokenInfo(ctx, oldest.token); err != nil {
			return err
		}
		if err := s.cache.DelAccountRel(ctx, accountID, oldest.token); err != nil {
			return err
		}
		kindTokens = append(kindTokens[:oldestIdx], kindTokens[oldestIdx+1:]...)
	}
	return nil
}

// Authenticate verifies a raw bearer token's signature and confirms it is
// still live in the cache, returning its cached token info (kind and
// account id). A signature-valid but
// cache-absent token is treated as unauthenticated.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (cache.TokenInfo, error) {
	if _, err := s.issuer.Verify(rawToken); err != nil {
		return cache.TokenInfo{}, err
	}
	info, err := s.cache.GetTokenInfo(ctx, rawToken)
	if err == cache.ErrMiss {
		return cache.TokenInfo{}, iamerr.Unauthorized("session", "authenticate", "token not found or expired")
	}
	if err != nil {
		return cache.TokenInfo{}, err
	}
	return info, nil
}

// Logout revokes a single token: removes its cache entry and its
// account-rel membership.
func (s *Service) Logout(ctx context.Context, accountID, token string) error {
	if err := s.cache.DelTokenInfo(ctx, token); err != nil {
		return err
	}
	return s.cache.DelAccountRel(ctx, accountID, token)
}

// StoreAccountContext writes an assembled context into the account-info
// hash at the field for actx.AppID ("" for the tenant-level context).
// Login flows call this after credential validation so get_account_context
// and the gateway's token path have something to read.
func (s *Service) StoreAccountContext(ctx context.Context, actx cache.AccountContext) error {
	return s.cache.SetAccountContext(ctx, actx.AccountID, actx.AppID, actx)
}

// GetAccountContext returns the cached context for (accountID, appID): if
// appID is non-empty and a tenant-level ("") context also exists, the
// returned roles/groups are the union of the app-level and tenant-level
// sets. Callers pass "" explicitly for the tenant-level context.
func (s *Service) GetAccountContext(ctx context.Context, accountID, appID string) (cache.AccountContext, error) {
	appCtx, appErr := s.cache.GetAccountContext(ctx, accountID, appID)
	if appID == "" {
		if appErr != nil {
			return cache.AccountContext{}, appErr
		}
		return appCtx, nil
	}

	tenantCtx, tenantErr := s.cache.GetAccountContext(ctx, accountID, "")
	switch {
	case appErr != nil && tenantErr != nil:
		return cache.AccountContext{}, appErr
	case appErr != nil:
		return tenantCtx, nil
	case tenantErr != nil:
		return appCtx, nil
	}

	return cache.AccountContext{
		AccountID: accountID,
		TenantID:  tenantCtx.TenantID,
		AppID:     appID,
		Roles:     unionStrings(appCtx.Roles, tenantCtx.Roles),
		Groups:    unionStrings(appCtx.Groups, tenantCtx.Groups),
		IsGlobal:  appCtx.IsGlobal || tenantCtx.IsGlobal,
	}, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// DeleteTokensAndContextsByTenantOrApp is the bulk teardown: walk every account-info hash, delete the context fields whose
// embedded scope matches id, and — for a tenant teardown — also revoke
// every token of each affected account. An app teardown removes only the
// app-scoped context fields, leaving the accounts' tenant-level sessions
// alive.
func (s *Service) DeleteTokensAndContextsByTenantOrApp(ctx context.Context, id string, isApp bool) error {
	keys, err := s.cache.ScanKeys(ctx, cache.AccountInfoPattern())
	if err != nil {
		return err
	}
	for _, key := range keys {
		accountID := cache.AccountIDFromInfoKey(key)
		if accountID == "" {
			continue
		}
		fields, err := s.cache.HGetAll(ctx, key)
		if err != nil {
			return err
		}
		matched := false
		for field, raw := range fields {
			var actx cache.AccountContext
			if err := json.Unmarshal([]byte(raw), &actx); err != nil {
				continue
			}
			hit := (isApp && actx.AppID == id) || (!isApp && actx.TenantID == id)
			if !hit {
				continue
			}
			matched = true
			if err := s.cache.HDel(ctx, key, field); err != nil {
				return err
			}
		}
		if matched && !isApp {
			if err := s.DeleteTokensAndContextsByAccount(ctx, accountID); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteTokensAndContextsByAccount revokes every token and clears every
// cached context for accountID (logout-everywhere / disable-account path).
func (s *Service) DeleteTokensAndContextsByAccount(ctx context.Context, accountID string) error {
	rel, err := s.cache.ListAccountRel(ctx, accountID)
	if err != nil {
		return err
	}
	for token := range rel {
		if err := s.cache.DelTokenInfo(ctx, token); err != nil {
			return err
		}
	}
	if err := s.cache.Del(ctx, cache.AccountRelKey(accountID)); err != nil {
		return err
	}
	return s.cache.ClearAccountContext(ctx, accountID)
}
