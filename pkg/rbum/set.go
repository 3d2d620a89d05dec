package rbum

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// sysCodeNodeLen is the fixed width of each sys_code segment; siblings are
// addressed by incrementing a base-36 suffix within that width — the
// sys_code path itself encodes the parent relation, so the tree needs no
// parent pointers.
const sysCodeNodeLen = 6

// AddSet creates a new organization-tree root.
func (s *Store) AddSet(ctx context.Context, code, name, ownPaths, owner string, scopeLevel ScopeLevel) (*Set, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_set (id, own_paths, owner, create_time, update_time, scope_level, code, name)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
		RETURNING id, own_paths, owner, create_time, update_time, scope_level, code, name`,
		id, ownPaths, owner, now, scopeLevel, code, name,
	)
	var set Set
	if err := row.Scan(&set.ID, &set.OwnPaths, &set.Owner, &set.CreateTime, &set.UpdateTime, &set.ScopeLevel, &set.Code, &set.Name); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-set", "inserting set", err)
	}
	return &set, nil
}

// AddSetCate inserts a category node under parentSysCode (empty for a root
// category), assigning the next sibling sys_code in sequence.
func (s *Store) AddSetCate(ctx context.Context, setID, parentSysCode, name, ownPaths, owner string) (*SetCate, error) {
	nextCode, err := s.nextSiblingSysCode(ctx, setID, parentSysCode)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_set_cate (id, own_paths, owner, create_time, update_time, scope_level, rel_rbum_set_id, sys_code, name)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8)
		RETURNING id, own_paths, owner, create_time, update_time, scope_level, rel_rbum_set_id, sys_code, name`,
		id, ownPaths, owner, now, ScopeL2, setID, nextCode, name,
	)
	var cate SetCate
	if err := row.Scan(&cate.ID, &cate.OwnPaths, &cate.Owner, &cate.CreateTime, &cate.UpdateTime, &cate.ScopeLevel, &cate.RelRbumSetID, &cate.SysCode, &cate.Name); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-set-cate", "inserting set-cate", err)
	}
	return &cate, nil
}

// nextSiblingSysCode finds the highest sys_code sharing parentSysCode as a
// prefix and returns the next one in base-36 sequence.
func (s *Store) nextSiblingSysCode(ctx context.Context, setID, parentSysCode string) (string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sys_code FROM rbum_set_cate
		WHERE rel_rbum_set_id = $1 AND sys_code LIKE $2
		ORDER BY sys_code DESC LIMIT 1`,
		setID, parentSysCode+"%")
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "rbum", "add-set-cate", "finding sibling code", err)
	}
	defer rows.Close()

	var last string
	if rows.Next() {
		if err := rows.Scan(&last); err != nil {
			return "", iamerr.Wrap(iamerr.KindInternal, "rbum", "add-set-cate", "scanning sibling code", err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "rbum", "add-set-cate", "iterating sibling codes", err)
	}

	if last == "" || len(last) <= len(parentSysCode) {
		return parentSysCode + firstSegment(), nil
	}
	lastSegment := last[len(parentSysCode): len(parentSysCode)+sysCodeNodeLen]
	next, err := incrementBase36(lastSegment)
	if err != nil {
		return "", iamerr.Internal("rbum", "add-set-cate", "sys_code space exhausted for this parent")
	}
	return parentSysCode + next, nil
}

func firstSegment() string {
	return strings.Repeat("0", sysCodeNodeLen-1) + "1"
}

// incrementBase36 increments a fixed-width base-36 string, erroring on overflow.
func incrementBase36(segment string) (string, error) {
	n, err := strconv.ParseUint(segment, 36, 64)
	if err != nil {
		return "", err
	}
	n++
	out := strconv.FormatUint(n, 36)
	if len(out) > len(segment) {
		return "", fmt.Errorf("sys_code segment overflow")
	}
	return strings.Repeat("0", len(segment)-len(out)) + strings.ToUpper(out), nil
}

// FindSetCatesByPrefix lists every category at or below sysCodePrefix,
// the subtree query the organization console uses to render a branch.
func (s *Store) FindSetCatesByPrefix(ctx context.Context, setID, sysCodePrefix string) ([]SetCate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, own_paths, owner, create_time, update_time, scope_level, rel_rbum_set_id, sys_code, name
		FROM rbum_set_cate WHERE rel_rbum_set_id = $1 AND sys_code LIKE $2
		ORDER BY sys_code`, setID, sysCodePrefix+"%")
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-set-cates", "listing set-cates", err)
	}
	defer rows.Close()

	var out []SetCate
	for rows.Next() {
		var c SetCate
		if err := rows.Scan(&c.ID, &c.OwnPaths, &c.Owner, &c.CreateTime, &c.UpdateTime, &c.ScopeLevel, &c.RelRbumSetID, &c.SysCode, &c.Name); err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-set-cates", "scanning set-cate", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindGroupSysCodesByItem returns the sys_code of every category itemID is
// a member of, across all sets — the group identifiers the authorization
// policy's hierarchy match runs against.
func (s *Store) FindGroupSysCodesByItem(ctx context.Context, itemID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sc.sys_code FROM rbum_set_item si
		JOIN rbum_set_cate sc ON si.rel_rbum_set_cate_id = sc.id
		WHERE si.rel_rbum_item_id = $1
		ORDER BY sc.sys_code`, itemID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-group-codes", "listing memberships", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-group-codes", "scanning sys_code", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// AddSetItem attaches itemID to a category with an explicit sort order.
func (s *Store) AddSetItem(ctx context.Context, setID, cateID, itemID, ownPaths, owner string, sort int) (*SetItem, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_set_item (id, own_paths, owner, create_time, update_time, scope_level, rel_rbum_set_id, rel_rbum_set_cate_id, rel_rbum_item_id, sort)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8, $9)
		RETURNING id, own_paths, owner, create_time, update_time, scope_level, rel_rbum_set_id, rel_rbum_set_cate_id, rel_rbum_item_id, sort`,
		id, ownPaths, owner, now, ScopeL2, setID, cateID, itemID, sort,
	)
	var si SetItem
	if err := row.Scan(&si.ID, &si.OwnPaths, &si.Owner, &si.CreateTime, &si.UpdateTime, &si.ScopeLevel, &si.RelRbumSetID, &si.RelRbumSetCateID, &si.RelRbumItemID, &si.Sort); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-set-item", "inserting set-item", err)
	}
	return &si, nil
}
