package rbum

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

const kindColumns = `id, own_paths, owner, create_time, update_time, scope_level, code, ext_table_name`

// Well-known kind codes seeded at bootstrap.
const (
	KindAccount  = "account"
	KindApp      = "app"
	KindTenant   = "tenant"
	KindRole     = "role"
	KindResource = "resource"
	KindOAuth2Client = "oauth2-client"
)

// AddKind registers a new RbumKind (seeded once per item class at bootstrap).
func (s *Store) AddKind(ctx context.Context, code, extTableName, ownPaths, owner string) (*Kind, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_kind (id, own_paths, owner, create_time, update_time, scope_level, code, ext_table_name)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
		RETURNING `+kindColumns,
		id, ownPaths, owner, now, ScopeRoot, code, extTableName,
	)
	var k Kind
	if err := row.Scan(&k.ID, &k.OwnPaths, &k.Owner, &k.CreateTime, &k.UpdateTime, &k.ScopeLevel, &k.Code, &k.ExtTableName); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-kind", "inserting kind", err)
	}
	return &k, nil
}

// GetKind fetches a kind by id.
func (s *Store) GetKind(ctx context.Context, id string) (*Kind, error) {
	row := s.db.QueryRow(ctx, `SELECT `+kindColumns+` FROM rbum_kind WHERE id = $1`, id)
	var k Kind
	if err := row.Scan(&k.ID, &k.OwnPaths, &k.Owner, &k.CreateTime, &k.UpdateTime, &k.ScopeLevel, &k.Code, &k.ExtTableName); err != nil {
		return nil, iamerr.NotFound("rbum", "get-kind", "kind not found")
	}
	return &k, nil
}

// GetKindByCode fetches a kind by its unique code.
func (s *Store) GetKindByCode(ctx context.Context, code string) (*Kind, error) {
	row := s.db.QueryRow(ctx, `SELECT `+kindColumns+` FROM rbum_kind WHERE code = $1`, code)
	var k Kind
	if err := row.Scan(&k.ID, &k.OwnPaths, &k.Owner, &k.CreateTime, &k.UpdateTime, &k.ScopeLevel, &k.Code, &k.ExtTableName); err != nil {
		return nil, iamerr.NotFound("rbum", "get-kind", "kind not found")
	}
	return &k, nil
}
