// Package seed provisions the well-known RbumDomain and RbumKind rows that
// item, cert-conf, and cert records reference by id; the schema declares no
// foreign keys, so these references are not enforced by the database. Runs
// once and skips rows that already exist, so
// calling it on every process start is safe.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/rbum"
)

const systemOwner = "system"

// wellKnownKinds maps the item classes seeded once per deployment
// (account/app/tenant/role/resource, plus oauth2-client as the credential
// anchor for the OAuth2 service) to their extension tables. oauth2-client
// carries no extension table: its extra metadata lives on its cert row.
var wellKnownKinds = []struct {
	code     string
	extTable string
}{
	{rbum.KindAccount, "iam_account"},
	{rbum.KindApp, "iam_app"},
	{rbum.KindTenant, "iam_tenant"},
	{rbum.KindRole, "iam_role"},
	{rbum.KindResource, "iam_res"},
	{rbum.KindOAuth2Client, ""},
}

// Bootstrap ensures domainCode's RbumDomain and every well-known RbumKind
// exist, creating whichever are missing. Safe to call on every process
// start: existing rows are left untouched.
func Bootstrap(ctx context.Context, store *rbum.Store, domainCode string, logger *slog.Logger) error {
	if _, err := store.GetDomainByCode(ctx, domainCode); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("checking domain %q: %w", domainCode, err)
		}
		if _, err := store.AddDomain(ctx, domainCode, domainCode, "", systemOwner); err != nil {
			return fmt.Errorf("seeding domain %q: %w", domainCode, err)
		}
		logger.Info("seed: created rbum domain", "code", domainCode)
	}

	for _, kind := range wellKnownKinds {
		if _, err := store.GetKindByCode(ctx, kind.code); err != nil {
			if !isNotFound(err) {
				return fmt.Errorf("checking kind %q: %w", kind.code, err)
			}
			if _, err := store.AddKind(ctx, kind.code, kind.extTable, "", systemOwner); err != nil {
				return fmt.Errorf("seeding kind %q: %w", kind.code, err)
			}
			logger.Info("seed: created rbum kind", "code", kind.code, "ext_table", kind.extTable)
		}
	}

	return nil
}

func isNotFound(err error) bool {
	ie, ok := iamerr.As(err)
	return ok && ie.Kind == iamerr.KindNotFound
}
