package cache

import "testing"

func TestKeyJoinsWithSingleSeparator(t *testing.T) {
	if got := Key("iam", "cache", "token", "info", "abc"); got != "iam:cache:token:info:abc" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("iam"); got != "iam" {
		t.Errorf("single-segment Key = %q, want no separator", got)
	}
}

func TestNamespaceKeys(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{TokenInfoKey("tk1"), "iam:cache:token:info:tk1"},
		{AkSkInfoKey("ak1"), "iam:cache:aksk:info:ak1"},
		{AccountRelKey("acc1"), "iam:cache:account:rel:acc1"},
		{AccountInfoKey("acc1"), "iam:cache:account:info:acc1"},
		{RoleInfoKey("r1"), "iam:cache:role:info:r1"},
		{DoubleAuthKey("acc1"), "iam:cache:double_auth:info:acc1"},
		{ResourceInfoKey(), "iam:res:info"},
		{ResourceChangedKey("123"), "iam:res:changed:info:123"},
		{OAuth2CodeKey("c1"), "iam:oauth2:service:code:c1"},
		{OAuth2RefreshTokenKey("rt1"), "iam:oauth2:service:refresh_token:rt1"},
		{GatewayRuleKey("ratelimit", "route1"), "sg:plugin:ratelimit:route1"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("key = %q, want %q", c.got, c.want)
		}
	}
}

func TestAccountIDFromInfoKey(t *testing.T) {
	key := AccountInfoKey("acc-42")
	if got := AccountIDFromInfoKey(key); got != "acc-42" {
		t.Errorf("AccountIDFromInfoKey(%q) = %q, want acc-42", key, got)
	}
	if got := AccountIDFromInfoKey("iam:cache:token:info:tk1"); got != "" {
		t.Errorf("foreign-namespace key yielded %q, want empty", got)
	}
	if got := AccountIDFromInfoKey(AccountInfoKey("")); got != "" {
		t.Errorf("bare prefix yielded %q, want empty", got)
	}
}
