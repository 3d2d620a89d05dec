package rbum

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

const domainColumns = `id, own_paths, owner, create_time, update_time, scope_level, code, name`

// AddDomain registers a new RbumDomain namespace.
func (s *Store) AddDomain(ctx context.Context, code, name, ownPaths, owner string) (*Domain, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_domain (id, own_paths, owner, create_time, update_time, scope_level, code, name)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
		RETURNING `+domainColumns,
		id, ownPaths, owner, now, ScopeRoot, code, name,
	)
	var d Domain
	if err := row.Scan(&d.ID, &d.OwnPaths, &d.Owner, &d.CreateTime, &d.UpdateTime, &d.ScopeLevel, &d.Code, &d.Name); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-domain", "inserting domain", err)
	}
	return &d, nil
}

// GetDomainByCode fetches a domain by its unique code (domains are Root
// scoped, so no own_paths filter applies).
func (s *Store) GetDomainByCode(ctx context.Context, code string) (*Domain, error) {
	row := s.db.QueryRow(ctx, `SELECT `+domainColumns+` FROM rbum_domain WHERE code = $1`, code)
	var d Domain
	if err := row.Scan(&d.ID, &d.OwnPaths, &d.Owner, &d.CreateTime, &d.UpdateTime, &d.ScopeLevel, &d.Code, &d.Name); err != nil {
		return nil, iamerr.NotFound("rbum", "get-domain", "domain not found")
	}
	return &d, nil
}
