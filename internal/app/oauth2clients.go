package app

import (
	"context"
	"encoding/json"

	"github.com/grayforge/keyward/pkg/credential"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/oauth2"
	"github.com/grayforge/keyward/pkg/rbum"
)

// clientExt is the extra client metadata oauth2.Client needs that
// rbum.Cert has no dedicated column for. It rides in Cert.Supplier as
// JSON, the way rbum.Cert's doc comment anticipates an oauth2-client cert
// carrying data a generic credential record doesn't otherwise need.
type clientExt struct {
	RedirectURI          string `json:"redirect_uri"`
	AccessTokenExpireSec int64  `json:"access_token_expire_sec"`
}

// oauth2ClientLookup adapts pkg/rbum's cert store into an
// oauth2.ClientLookup: a registered client is an RbumCert of kind
// "oauth2-client", ak is the client_id, sk is the client_secret.
func oauth2ClientLookup(store *rbum.Store) oauth2.ClientLookup {
	return func(ctx context.Context, clientID string) (oauth2.Client, error) {
		cert, err := store.GetCertByAk(ctx, credential.KindOAuth2Client, clientID)
		if err != nil {
			return oauth2.Client{}, err
		}
		if cert.Status != rbum.CertEnabled {
			return oauth2.Client{}, iamerr.Forbidden("oauth2", "client-lookup", "client credential is not enabled")
		}

		var ext clientExt
		if cert.Supplier != "" {
			if err := json.Unmarshal([]byte(cert.Supplier), &ext); err != nil {
				return oauth2.Client{}, iamerr.Wrap(iamerr.KindInternal, "oauth2", "client-lookup", "decoding client metadata", err)
			}
		}

		return oauth2.Client{
			ClientID:             cert.Ak,
			ClientSecret:         cert.Sk,
			RedirectURI:          ext.RedirectURI,
			AccessTokenExpireSec: ext.AccessTokenExpireSec,
		}, nil
	}
}
