package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// TokenInfo is the value stored at TokenInfoKey: `<token_kind>,<account_id>`.
type TokenInfo struct {
	TokenKind string
	AccountID string
}

func (t TokenInfo) encode() string { return t.TokenKind + "," + t.AccountID }

func decodeTokenInfo(raw string) (TokenInfo, error) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return TokenInfo{}, iamerr.Internal("cache", "token-info", "malformed token-info value")
	}
	return TokenInfo{TokenKind: parts[0], AccountID: parts[1]}, nil
}

// SetTokenInfo writes a token's info with ttl.
func (c *Cache) SetTokenInfo(ctx context.Context, token string, info TokenInfo, ttl time.Duration) error {
	return c.Set(ctx, TokenInfoKey(token), info.encode(), ttl)
}

// GetTokenInfo reads a token's info, returning ErrMiss when the token is
// unknown or expired. A cache miss for a token means unauthenticated,
// never a fall-through to the DB.
func (c *Cache) GetTokenInfo(ctx context.Context, token string) (TokenInfo, error) {
	raw, err := c.Get(ctx, TokenInfoKey(token))
	if err != nil {
		return TokenInfo{}, err
	}
	return decodeTokenInfo(raw)
}

// DelTokenInfo removes a token's info (logout/eviction).
func (c *Cache) DelTokenInfo(ctx context.Context, token string) error {
	return c.Del(ctx, TokenInfoKey(token))
}

// AkSkInfo is the value stored at AkSkInfoKey: `<sk>,<tenant_id>,<app_id>`.
type AkSkInfo struct {
	Sk       string
	TenantID string
	AppID    string
}

func (a AkSkInfo) encode() string { return a.Sk + "," + a.TenantID + "," + a.AppID }

func decodeAkSkInfo(raw string) (AkSkInfo, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return AkSkInfo{}, iamerr.Internal("cache", "aksk-info", "malformed aksk-info value")
	}
	return AkSkInfo{Sk: parts[0], TenantID: parts[1], AppID: parts[2]}, nil
}

// SetAkSkInfo caches an ak's secret and scope; ttl <= 0 caches indefinitely
// (an AK/SK whose cert never expires).
func (c *Cache) SetAkSkInfo(ctx context.Context, ak string, info AkSkInfo, ttl time.Duration) error {
	return c.Set(ctx, AkSkInfoKey(ak), info.encode(), ttl)
}

// GetAkSkInfo reads the cached secret/scope for ak.
func (c *Cache) GetAkSkInfo(ctx context.Context, ak string) (AkSkInfo, error) {
	raw, err := c.Get(ctx, AkSkInfoKey(ak))
	if err != nil {
		return AkSkInfo{}, err
	}
	return decodeAkSkInfo(raw)
}

// AccountRelEntry is one (token -> kind,add_time) mapping in the account-rel hash.
type AccountRelEntry struct {
	TokenKind string
	AddTime   time.Time
}

func (e AccountRelEntry) encode() string {
	return e.TokenKind + "," + strconv.FormatInt(e.AddTime.UnixMicro(), 10)
}

func decodeAccountRelEntry(raw string) (AccountRelEntry, error) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return AccountRelEntry{}, iamerr.Internal("cache", "account-rel", "malformed account-rel entry")
	}
	micros, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return AccountRelEntry{}, iamerr.Internal("cache", "account-rel", "malformed add_time")
	}
	return AccountRelEntry{TokenKind: parts[0], AddTime: time.UnixMicro(micros)}, nil
}

// AddAccountRel appends a token entry to the account-rel hash.
func (c *Cache) AddAccountRel(ctx context.Context, accountID, token string, entry AccountRelEntry) error {
	return c.HSet(ctx, AccountRelKey(accountID), token, entry.encode())
}

// DelAccountRel removes a token entry from the account-rel hash.
func (c *Cache) DelAccountRel(ctx context.Context, accountID, token string) error {
	return c.HDel(ctx, AccountRelKey(accountID), token)
}

// ListAccountRel returns every token entry for accountID, used by
// add_token's coexist_num overflow check.
func (c *Cache) ListAccountRel(ctx context.Context, accountID string) (map[string]AccountRelEntry, error) {
	raw, err := c.HGetAll(ctx, AccountRelKey(accountID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]AccountRelEntry, len(raw))
	for token, v := range raw {
		entry, err := decodeAccountRelEntry(v)
		if err != nil {
			return nil, err
		}
		out[token] = entry
	}
	return out, nil
}

// AccountContext is the serialized value of one account-info hash field.
type AccountContext struct {
	AccountID string   `json:"account_id"`
	TenantID  string   `json:"tenant_id"`
	AppID     string   `json:"app_id,omitempty"`
	Roles     []string `json:"roles"`
	Groups    []string `json:"groups"`
	IsGlobal  bool      `json:"is_global"`
}

// accountInfoField is the account-info hash field for appID ("" for tenant-level).
func accountInfoField(appID string) string { return appID }

// SetAccountContext stores the serialized context for (accountID, appID).
func (c *Cache) SetAccountContext(ctx context.Context, accountID, appID string, actx AccountContext) error {
	b, err := json.Marshal(actx)
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "set-account-context", "marshaling context", err)
	}
	return c.HSet(ctx, AccountInfoKey(accountID), accountInfoField(appID), string(b))
}

// GetAccountContext reads the context for (accountID, appID).
func (c *Cache) GetAccountContext(ctx context.Context, accountID, appID string) (AccountContext, error) {
	raw, err := c.HGet(ctx, AccountInfoKey(accountID), accountInfoField(appID))
	if err != nil {
		return AccountContext{}, err
	}
	var actx AccountContext
	if err := json.Unmarshal([]byte(raw), &actx); err != nil {
		return AccountContext{}, iamerr.Wrap(iamerr.KindInternal, "cache", "get-account-context", "unmarshaling context", err)
	}
	return actx, nil
}

// ClearAccountContext deletes every cached context for accountID (logout/disable).
func (c *Cache) ClearAccountContext(ctx context.Context, accountID string) error {
	return c.Del(ctx, AccountInfoKey(accountID))
}

// RoleSummary is the cached role-info value: enough of a role item for
// policy display and membership checks without a DB round trip.
type RoleSummary struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	OwnPaths string `json:"own_paths"`
	Disabled bool   `json:"disabled"`
}

// SetRoleInfo caches a role summary, refreshed on every role change.
func (c *Cache) SetRoleInfo(ctx context.Context, summary RoleSummary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "set-role-info", "marshaling summary", err)
	}
	return c.Set(ctx, RoleInfoKey(summary.ID), string(b), 0)
}

// GetRoleInfo reads the cached summary for roleID, ErrMiss when uncached.
func (c *Cache) GetRoleInfo(ctx context.Context, roleID string) (RoleSummary, error) {
	raw, err := c.Get(ctx, RoleInfoKey(roleID))
	if err != nil {
		return RoleSummary{}, err
	}
	var summary RoleSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return RoleSummary{}, iamerr.Wrap(iamerr.KindInternal, "cache", "get-role-info", "unmarshaling summary", err)
	}
	return summary, nil
}

// DelRoleInfo drops the cached summary for roleID.
func (c *Cache) DelRoleInfo(ctx context.Context, roleID string) error {
	return c.Del(ctx, RoleInfoKey(roleID))
}

// SetDoubleAuthFlag marks accountID as having passed double-auth, for 300s.
func (c *Cache) SetDoubleAuthFlag(ctx context.Context, accountID string) error {
	return c.Set(ctx, DoubleAuthKey(accountID), "1", 300*time.Second)
}

// HasDoubleAuthFlag reports whether accountID currently holds a live double-auth flag.
func (c *Cache) HasDoubleAuthFlag(ctx context.Context, accountID string) (bool, error) {
	_, err := c.Get(ctx, DoubleAuthKey(accountID))
	if err == ErrMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PublishResourceChanged records a resource-changed marker so gateway nodes
// pick it up on their periodic trie refresh.
func (c *Cache) PublishResourceChanged(ctx context.Context, uri, action string) error {
	key := ResourceChangedKey(strconv.FormatInt(time.Now().UnixNano(), 10))
	return c.Set(ctx, key, fmt.Sprintf("%s##%s", uri, action), 300*time.Second)
}

// SetResourceSnapshot stores the full serialized resource trie at
// ResourceInfoKey, overwriting whatever was there. The node that handled a
// register/unregister call writes the new authoritative snapshot; every
// other node's periodic tick reads it back via GetResourceSnapshot.
func (c *Cache) SetResourceSnapshot(ctx context.Context, snapshot string) error {
	return c.Set(ctx, ResourceInfoKey(), snapshot, 0)
}

// GetResourceSnapshot reads the serialized resource trie, returning ErrMiss
// if no node has published one yet.
func (c *Cache) GetResourceSnapshot(ctx context.Context) (string, error) {
	return c.Get(ctx, ResourceInfoKey())
}
