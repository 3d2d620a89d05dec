package credential

import (
	"strings"
	"testing"
)

func TestParseSupplierConfig(t *testing.T) {
	raw := `{"client_id":"cid","auth_url":"https://idp/auth","token_url":"https://idp/token","user_info_url":"https://idp/me","redirect_url":"https://app/cb","scopes":["openid","profile"]}`
	sc, err := ParseSupplierConfig([]byte(raw))
	if err != nil {
		t.Fatalf("ParseSupplierConfig: %v", err)
	}
	if sc.ClientID != "cid" || sc.TokenURL != "https://idp/token" || len(sc.Scopes) != 2 {
		t.Errorf("parsed config = %+v", sc)
	}
}

func TestParseSupplierConfigRejectsIncomplete(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"client_id":"cid"}`,
		`{"client_id":"cid","auth_url":"https://idp/auth"}`,
		`not-json`,
	} {
		if _, err := ParseSupplierConfig([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestSupplierConfigMapsToOAuth2Config(t *testing.T) {
	sc := SupplierConfig{
		ClientID:     "cid",
		ClientSecret: "sec",
		AuthURL:      "https://idp/auth",
		TokenURL:     "https://idp/token",
		RedirectURL:  "https://app/cb",
		Scopes:       []string{"openid"},
	}
	cfg := sc.Config()
	if cfg.ClientID != "cid" || cfg.ClientSecret != "sec" {
		t.Errorf("client mapping = %+v", cfg)
	}
	if cfg.Endpoint.AuthURL != sc.AuthURL || cfg.Endpoint.TokenURL != sc.TokenURL {
		t.Errorf("endpoint mapping = %+v", cfg.Endpoint)
	}

	url := sc.AuthCodeURL("state123")
	if !strings.Contains(url, "client_id=cid") || !strings.Contains(url, "state=state123") {
		t.Errorf("AuthCodeURL = %q", url)
	}
}
