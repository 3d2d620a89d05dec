package rbum

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

const relColumns = `id, own_paths, owner, create_time, update_time, scope_level, tag, from_rbum_kind, from_rbum_id, to_rbum_item_id, ext`

// Well-known rel tags for the bindings the IAM layer creates.
const (
	RelTagAccountRole = "iam_account_role"
	RelTagAccountApp  = "iam_account_app"
)

// AddRelReq is the input to AddRel.
type AddRelReq struct {
	Tag          string
	FromRbumKind RelRbumKind
	FromRbumID   string
	ToRbumItemID string
	Ext          string
	OwnPaths     string
	Owner        string
	ScopeLevel   ScopeLevel
}

// AddRel inserts a new tagged link. It does not check for an existing
// (tag, from, to) triple, so adding the same triple twice stores two rows.
func (s *Store) AddRel(ctx context.Context, req AddRelReq) (*Rel, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_rel (id, own_paths, owner, create_time, update_time, scope_level, tag, from_rbum_kind, from_rbum_id, to_rbum_item_id, ext)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+relColumns,
		id, req.OwnPaths, req.Owner, now, req.ScopeLevel, req.Tag, req.FromRbumKind, req.FromRbumID, req.ToRbumItemID, req.Ext,
	)
	rel, err := scanRel(row)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-rel", "inserting rel", err)
	}
	return &rel, nil
}

// FindRelsByFrom lists every rel tagged tag originating at (fromKind, fromID).
func (s *Store) FindRelsByFrom(ctx context.Context, tag string, fromKind RelRbumKind, fromID string) ([]Rel, error) {
	rows, err := s.db.Query(ctx, `SELECT `+relColumns+` FROM rbum_rel WHERE tag = $1 AND from_rbum_kind = $2 AND from_rbum_id = $3`, tag, fromKind, fromID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-rels", "listing rels", err)
	}
	defer rows.Close()
	var out []Rel
	for rows.Next() {
		rel, err := scanRel(rows)
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-rels", "scanning rel", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// FindRelsByTo lists every rel tagged tag pointing at toItemID — used to
// answer "who has role X" by walking from the role item backward.
func (s *Store) FindRelsByTo(ctx context.Context, tag, toItemID string) ([]Rel, error) {
	rows, err := s.db.Query(ctx, `SELECT `+relColumns+` FROM rbum_rel WHERE tag = $1 AND to_rbum_item_id = $2`, tag, toItemID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-rels", "listing rels", err)
	}
	defer rows.Close()
	var out []Rel
	for rows.Next() {
		rel, err := scanRel(rows)
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-rels", "scanning rel", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// DeleteRel removes a single rel by id.
func (s *Store) DeleteRel(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_rel WHERE id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-rel", "deleting rel", err)
	}
	return nil
}

// AddRelEnv attaches a validity envelope to an existing rel.
func (s *Store) AddRelEnv(ctx context.Context, relID, kind, value1, value2 string) (*RelEnv, error) {
	id := uuid.New().String()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_rel_env (id, rel_rbum_rel_id, kind, value1, value2)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, rel_rbum_rel_id, kind, value1, value2`,
		id, relID, kind, value1, value2,
	)
	var e RelEnv
	if err := row.Scan(&e.ID, &e.RelRbumRelID, &e.Kind, &e.Value1, &e.Value2); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-rel-env", "inserting rel-env", err)
	}
	return &e, nil
}

// FindRelEnvs lists the validity envelopes attached to relID.
func (s *Store) FindRelEnvs(ctx context.Context, relID string) ([]RelEnv, error) {
	rows, err := s.db.Query(ctx, `SELECT id, rel_rbum_rel_id, kind, value1, value2 FROM rbum_rel_env WHERE rel_rbum_rel_id = $1`, relID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-rel-envs", "listing rel-envs", err)
	}
	defer rows.Close()
	var out []RelEnv
	for rows.Next() {
		var e RelEnv
		if err := rows.Scan(&e.ID, &e.RelRbumRelID, &e.Kind, &e.Value1, &e.Value2); err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-rel-envs", "scanning rel-env", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RelLive reports whether relID currently passes every attached validity
// envelope: no envelopes means always live.
func (s *Store) RelLive(ctx context.Context, relID string, now time.Time) (bool, error) {
	envs, err := s.FindRelEnvs(ctx, relID)
	if err != nil {
		return false, err
	}
	for _, e := range envs {
		if !e.Live(now) {
			return false, nil
		}
	}
	return true, nil
}

func scanRel(row scannable) (Rel, error) {
	var r Rel
	err := row.Scan(
		&r.ID, &r.OwnPaths, &r.Owner, &r.CreateTime, &r.UpdateTime, &r.ScopeLevel,
		&r.Tag, &r.FromRbumKind, &r.FromRbumID, &r.ToRbumItemID, &r.Ext,
	)
	return r, err
}
