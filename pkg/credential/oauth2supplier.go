package credential

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// SupplierConfig describes an external OAuth2 identity supplier a tenant
// has registered for third-party login (the "OAuth2-per-supplier"
// credential kind). It is stored as JSON on the supplier's cert row;
// the client secret lives in the cert's sk column, never in this blob.
type SupplierConfig struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	UserInfoURL  string   `json:"user_info_url"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
	// SubjectField names the userinfo JSON field carrying the stable
	// external account id; "sub" when empty.
	SubjectField string `json:"subject_field"`
}

// ParseSupplierConfig decodes a supplier cert's config blob.
func ParseSupplierConfig(raw []byte) (SupplierConfig, error) {
	var sc SupplierConfig
	if err := json.Unmarshal(raw, &sc); err != nil {
		return SupplierConfig{}, iamerr.Wrap(iamerr.KindInternal, "credential", "oauth2-supplier", "decoding supplier config", err)
	}
	if sc.ClientID == "" || sc.AuthURL == "" || sc.TokenURL == "" {
		return SupplierConfig{}, iamerr.BadRequest("credential", "oauth2-supplier", "supplier config missing client_id or endpoint URLs")
	}
	return sc, nil
}

// Config renders the supplier as an oauth2.Config ready for the
// authorization-code exchange.
func (sc SupplierConfig) Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		RedirectURL:  sc.RedirectURL,
		Scopes:       sc.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  sc.AuthURL,
			TokenURL: sc.TokenURL,
		},
	}
}

// AuthCodeURL is the supplier's consent URL for state, handed to the
// front-end starting a third-party login.
func (sc SupplierConfig) AuthCodeURL(state string) string {
	return sc.Config().AuthCodeURL(state)
}

// SupplierExchanger performs the outbound half of a third-party login:
// redeem the authorization code at the supplier, then resolve the
// external subject from its userinfo endpoint. Every call carries its own
// timeout; cancellation propagates through ctx.
type SupplierExchanger struct {
	Timeout time.Duration
}

const defaultSupplierTimeout = 10 * time.Second

func (e SupplierExchanger) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return defaultSupplierTimeout
}

// Exchange redeems code at the supplier's token endpoint.
func (e SupplierExchanger) Exchange(ctx context.Context, sc SupplierConfig, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	token, err := sc.Config().Exchange(ctx, code)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindUnauthorized, "credential", "oauth2-supplier", "exchanging authorization code", err)
	}
	return token, nil
}

// FetchSubject calls the supplier's userinfo endpoint with token and
// extracts the external account id.
func (e SupplierExchanger) FetchSubject(ctx context.Context, sc SupplierConfig, token *oauth2.Token) (string, error) {
	if sc.UserInfoURL == "" {
		return "", iamerr.BadRequest("credential", "oauth2-supplier", "supplier config has no user_info_url")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	client := sc.Config().Client(ctx, token)
	resp, err := client.Get(sc.UserInfoURL)
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindUnauthorized, "credential", "oauth2-supplier", "fetching userinfo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", iamerr.Unauthorized("credential", "oauth2-supplier", "supplier userinfo endpoint rejected the token")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "credential", "oauth2-supplier", "reading userinfo body", err)
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return "", iamerr.Wrap(iamerr.KindUnauthorized, "credential", "oauth2-supplier", "decoding userinfo body", err)
	}

	field := sc.SubjectField
	if field == "" {
		field = "sub"
	}
	subject, _ := claims[field].(string)
	if subject == "" {
		return "", iamerr.Unauthorized("credential", "oauth2-supplier", "userinfo response carries no subject")
	}
	return subject, nil
}
