package rbum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/grayforge/keyward/pkg/iamerr"
)

const itemColumns = `id, own_paths, owner, create_time, update_time, scope_level, code, name, rel_rbum_kind_id, rel_rbum_domain_id, disabled`

// AddItemReq is the input to AddItem.
type AddItemReq struct {
	Code            string
	Name            string
	RelRbumKindID   string
	RelRbumDomainID string
	OwnPaths        string
	Owner           string
	ScopeLevel      ScopeLevel
	Disabled        bool
}

// AddItem validates uniqueness within (domain, own_paths) and inserts a
// new RbumItem. A non-empty Code must be unique among non-disabled items
// sharing the same domain and own_paths.
func (s *Store) AddItem(ctx context.Context, req AddItemReq) (*Item, error) {
	if req.Code != "" {
		exists, err := s.itemCodeExists(ctx, req.RelRbumDomainID, req.OwnPaths, req.Code, "")
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-item", "checking code uniqueness", err)
		}
		if exists {
			return nil, iamerr.Conflict("rbum", "add-item", fmt.Sprintf("code %q already exists for this domain in %q", req.Code, req.OwnPaths))
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_item (id, own_paths, owner, create_time, update_time, scope_level, code, name, rel_rbum_kind_id, rel_rbum_domain_id, disabled)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+itemColumns,
		id, req.OwnPaths, req.Owner, now, req.ScopeLevel, req.Code, req.Name, req.RelRbumKindID, req.RelRbumDomainID, req.Disabled,
	)
	item, err := scanItem(row)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-item", "inserting item", err)
	}
	return &item, nil
}

// ModifyItem updates the mutable fields of an existing item in place,
// re-checking code uniqueness if the code changes.
func (s *Store) ModifyItem(ctx context.Context, id string, name *string, code *string, disabled *bool) (*Item, error) {
	existing, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if code != nil && *code != existing.Code {
		exists, err := s.itemCodeExists(ctx, existing.RelRbumDomainID, existing.OwnPaths, *code, id)
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "modify-item", "checking code uniqueness", err)
		}
		if exists {
			return nil, iamerr.Conflict("rbum", "modify-item", fmt.Sprintf("code %q already exists for this domain in %q", *code, existing.OwnPaths))
		}
		existing.Code = *code
	}
	if name != nil {
		existing.Name = *name
	}
	if disabled != nil {
		existing.Disabled = *disabled
	}

	row := s.db.QueryRow(ctx, `
		UPDATE rbum_item SET name = $2, code = $3, disabled = $4, update_time = $5
		WHERE id = $1
		RETURNING `+itemColumns,
		id, existing.Name, existing.Code, existing.Disabled, time.Now().UTC(),
	)
	item, err := scanItem(row)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "modify-item", "updating item", err)
	}
	return &item, nil
}

// GetItem fetches a single item by id. No scope check is applied.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM rbum_item WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, iamerr.NotFound("rbum", "get-item", "item not found")
		}
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "get-item", "fetching item", err)
	}
	return &item, nil
}

// FindItems lists items matching filter, applying scope visibility
// against ctxOwnPaths.
func (s *Store) FindItems(ctx context.Context, ctxOwnPaths string, filter BasicFilterReq) ([]Item, error) {
	return s.FindItemsFiltered(ctx, ctxOwnPaths, filter, nil, nil)
}

// FindItemsFiltered is FindItems plus the entity-specific constraints:
// rel-graph filters (all AND-combined, each with its own direction flag)
// and an optional set-membership filter addressed by sys_code subtree
// prefix.
func (s *Store) FindItemsFiltered(ctx context.Context, ctxOwnPaths string, filter BasicFilterReq, relFilters []ItemRelFilterReq, setFilter *SetItemRelFilterReq) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM rbum_item WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.IDs) > 0 {
		query += ` AND id = ANY(` + arg(filter.IDs) + `)`
	}
	if filter.RelRbumKindID != "" {
		query += ` AND rel_rbum_kind_id = ` + arg(filter.RelRbumKindID)
	}
	if filter.RelRbumDomainID != "" {
		query += ` AND rel_rbum_domain_id = ` + arg(filter.RelRbumDomainID)
	}
	if filter.Code != "" {
		query += ` AND code = ` + arg(filter.Code)
	}
	if filter.Name != "" {
		query += ` AND name = ` + arg(filter.Name)
	}
	if filter.NameLike != "" {
		query += ` AND name ILIKE ` + arg("%"+filter.NameLike+"%")
	}
	if filter.Disabled != nil {
		query += ` AND disabled = ` + arg(*filter.Disabled)
	}
	if filter.WithSubOwnPaths {
		query += ` AND own_paths LIKE ` + arg(filter.OwnPaths+"%")
	} else if filter.OwnPaths != "" {
		query += ` AND own_paths = ` + arg(filter.OwnPaths)
	}

	for _, rf := range relFilters {
		switch rf.Dir {
		case RelDirTo:
			// Items on the "from" side of rels pointing at RelRbumID.
			sub := ` AND EXISTS (SELECT 1 FROM rbum_rel WHERE tag = ` + arg(rf.Tag) +
				` AND to_rbum_item_id = ` + arg(rf.RelRbumID) +
				` AND from_rbum_id = rbum_item.id`
			if rf.FromRbumKind != "" {
				sub += ` AND from_rbum_kind = ` + arg(rf.FromRbumKind)
			}
			query += sub + `)`
		default:
			// Items on the "to" side of rels originating at RelRbumID.
			sub := ` AND EXISTS (SELECT 1 FROM rbum_rel WHERE tag = ` + arg(rf.Tag) +
				` AND from_rbum_id = ` + arg(rf.RelRbumID) +
				` AND to_rbum_item_id = rbum_item.id`
			if rf.FromRbumKind != "" {
				sub += ` AND from_rbum_kind = ` + arg(rf.FromRbumKind)
			}
			query += sub + `)`
		}
	}

	if setFilter != nil {
		sub := ` AND EXISTS (SELECT 1 FROM rbum_set_item si JOIN rbum_set_cate sc ON si.rel_rbum_set_cate_id = sc.id` +
			` WHERE si.rel_rbum_item_id = rbum_item.id AND si.rel_rbum_set_id = ` + arg(setFilter.RelRbumSetID)
		if setFilter.SysCodePrefix != "" {
			sub += ` AND sc.sys_code LIKE ` + arg(setFilter.SysCodePrefix+"%")
		}
		query += sub + `)`
	}

	query += ` ORDER BY create_time DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-items", "listing items", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItemRows(rows)
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-items", "scanning item", err)
		}
		if CheckScope(item.OwnPaths, item.ScopeLevel, ctxOwnPaths) {
			out = append(out, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-items", "iterating items", err)
	}
	return out, nil
}

// DeleteItemWithAllRels removes an item, its extension row, and every
// cert/rel/set-item row that references it, in one transaction.
func (s *Store) DeleteItemWithAllRels(ctx context.Context, id string) error {
	return s.InTx(ctx, func(tx *Store) error {
		return tx.deleteItemCascade(ctx, id)
	})
}

func (s *Store) deleteItemCascade(ctx context.Context, id string) error {
	var extTable string
	err := s.db.QueryRow(ctx, `
		SELECT k.ext_table_name FROM rbum_item i JOIN rbum_kind k ON i.rel_rbum_kind_id = k.id
		WHERE i.id = $1`, id).Scan(&extTable)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-item", "resolving ext table", err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_cert WHERE rel_rbum_kind = 'item' AND rel_rbum_id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-item", "deleting certs", err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_rel WHERE (from_rbum_kind = 'item' AND from_rbum_id = $1) OR to_rbum_item_id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-item", "deleting rels", err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_set_item WHERE rel_rbum_item_id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-item", "deleting set items", err)
	}
	if err := s.DeleteItemExt(ctx, extTable, id); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_item WHERE id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-item", "deleting item", err)
	}
	return nil
}

// DeleteAppWithAllRels tears down an app item and everything scoped under
// its own_paths, in fixed dependency order: app
// credentials, account-app bindings, groups under the app (sets, their
// nodes, their memberships), roles under the app and their bindings,
// resources under the app, then the app item itself. appOwnPaths is the
// path subordinate records live under (typically "<tenant>/<app>").
func (s *Store) DeleteAppWithAllRels(ctx context.Context, appID, appOwnPaths string) error {
	prefix := appOwnPaths + "%"
	return s.InTx(ctx, func(tx *Store) error {
		// App idents: every cert anchored to the app or scoped under it.
		if _, err := tx.db.Exec(ctx, `DELETE FROM rbum_cert WHERE (rel_rbum_kind = 'item' AND rel_rbum_id = $1) OR own_paths LIKE $2`, appID, prefix); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "deleting app certs", err)
		}
		// Account-app bindings and every other rel touching the app's scope.
		if _, err := tx.db.Exec(ctx, `DELETE FROM rbum_rel_env WHERE rel_rbum_rel_id IN (SELECT id FROM rbum_rel WHERE to_rbum_item_id = $1 OR own_paths LIKE $2)`, appID, prefix); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "deleting rel envs", err)
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM rbum_rel WHERE to_rbum_item_id = $1 OR (from_rbum_kind = 'item' AND from_rbum_id = $1) OR own_paths LIKE $2`, appID, prefix); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "deleting app rels", err)
		}
		// Group memberships, then group nodes, then the groups themselves.
		if _, err := tx.db.Exec(ctx, `DELETE FROM rbum_set_item WHERE own_paths LIKE $1 OR rel_rbum_set_id IN (SELECT id FROM rbum_set WHERE own_paths LIKE $1)`, prefix); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "deleting group memberships", err)
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM rbum_set_cate WHERE rel_rbum_set_id IN (SELECT id FROM rbum_set WHERE own_paths LIKE $1)`, prefix); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "deleting group nodes", err)
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM rbum_set WHERE own_paths LIKE $1`, prefix); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "deleting groups", err)
		}
		// Roles and resources under the app, each with their ext rows and
		// remaining references.
		rows, err := tx.db.Query(ctx, `SELECT id FROM rbum_item WHERE own_paths LIKE $1 AND id != $2`, prefix, appID)
		if err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "listing app-scoped items", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "scanning item id", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-app", "iterating app-scoped items", err)
		}
		for _, id := range ids {
			if err := tx.deleteItemCascade(ctx, id); err != nil {
				return err
			}
		}
		return tx.deleteItemCascade(ctx, appID)
	})
}

func (s *Store) itemCodeExists(ctx context.Context, domainID, ownPaths, code, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM rbum_item
			WHERE rel_rbum_domain_id = $1 AND own_paths = $2 AND code = $3 AND disabled = FALSE AND id != $4
		)`, domainID, ownPaths, code, excludeID).Scan(&exists)
	return exists, err
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(
		&it.ID, &it.OwnPaths, &it.Owner, &it.CreateTime, &it.UpdateTime, &it.ScopeLevel,
		&it.Code, &it.Name, &it.RelRbumKindID, &it.RelRbumDomainID, &it.Disabled,
	)
	return it, err
}

func scanItemRows(rows pgx.Rows) (Item, error) {
	var it Item
	err := rows.Scan(
		&it.ID, &it.OwnPaths, &it.Owner, &it.CreateTime, &it.UpdateTime, &it.ScopeLevel,
		&it.Code, &it.Name, &it.RelRbumKindID, &it.RelRbumDomainID, &it.Disabled,
	)
	return it, err
}
