// Package cache provides typed views over the redis-backed key-value
// cache: the single source of truth for session state, queried by every
// kernel package instead of the relational store.
package cache

// Key builds a colon-delimited cache key from segments, always inserting
// exactly one separator and never a trailing one, so call sites cannot
// drift into hand-formatted keys with inconsistent delimiters.
func Key(segments ...string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += ":"
		}
		out += s
	}
	return out
}

// TokenInfoKey is `iam:cache:token:info:<token>`.
func TokenInfoKey(token string) string {
	return Key("iam", "cache", "token", "info", token)
}

// AkSkInfoKey is `iam:cache:aksk:info:<ak>`.
func AkSkInfoKey(ak string) string {
	return Key("iam", "cache", "aksk", "info", ak)
}

// AccountRelKey is `iam:cache:account:rel:<account_id>`.
func AccountRelKey(accountID string) string {
	return Key("iam", "cache", "account", "rel", accountID)
}

// AccountInfoKey is `iam:cache:account:info:<account_id>`.
func AccountInfoKey(accountID string) string {
	return Key("iam", "cache", "account", "info", accountID)
}

// AccountInfoPattern is the SCAN glob matching every account-info hash key.
func AccountInfoPattern() string {
	return AccountInfoKey("*")
}

// AccountIDFromInfoKey recovers the account id from an account-info key,
// returning "" for keys outside that namespace.
func AccountIDFromInfoKey(key string) string {
	prefix := AccountInfoKey("")
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return ""
	}
	return key[len(prefix):]
}

// RoleInfoKey is `iam:cache:role:info:<role_id>`.
func RoleInfoKey(roleID string) string {
	return Key("iam", "cache", "role", "info", roleID)
}

// DoubleAuthKey is `iam:cache:double_auth:info:<account_id>`.
func DoubleAuthKey(accountID string) string {
	return Key("iam", "cache", "double_auth", "info", accountID)
}

// ResourceInfoKey is `iam:res:info`: the serialized resource trie snapshot.
func ResourceInfoKey() string {
	return Key("iam", "res", "info")
}

// ResourceChangedKey is `iam:res:changed:info:<ts>`.
func ResourceChangedKey(ts string) string {
	return Key("iam", "res", "changed", "info", ts)
}

// GatewayRuleKey is `sg:plugin:<plugin>:<rest...>`: gateway
// plug-in state, namespaced separately from the `iam:` prefix because it is
// owned by the gateway process, not the IAM kernel.
func GatewayRuleKey(plugin string, rest ...string) string {
	segs := append([]string{"sg", "plugin", plugin}, rest...)
	return Key(segs...)
}

// VCodeKey holds the live verification code for ak's dynamic credential,
// sharing the iam:cache namespace with the lock keys below.
func VCodeKey(ak string) string {
	return Key("iam", "cache", "vcode", ak)
}

// CertLockCounterKey is the per-ak credential-mismatch failure counter
// used by the credential engine's lockout check.
func CertLockCounterKey(ak string) string {
	return Key("iam", "cache", "cert", "lock", "counter", ak)
}

// CertLockKey is the trip-state key set once CertLockCounterKey crosses
// sk_lock_err_times.
func CertLockKey(ak string) string {
	return Key("iam", "cache", "cert", "lock", "state", ak)
}

// OAuth2CodeKey is `iam:oauth2:service:code:<code>`.
func OAuth2CodeKey(code string) string {
	return Key("iam", "oauth2", "service", "code", code)
}

// OAuth2RefreshTokenKey is `iam:oauth2:service:refresh_token:<token>`.
func OAuth2RefreshTokenKey(token string) string {
	return Key("iam", "oauth2", "service", "refresh_token", token)
}
