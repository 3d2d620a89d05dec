package rbum

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// identPattern restricts ext table and column names to plain lowercase SQL
// identifiers. Ext table names come from seeded RbumKind rows and column
// names from API callers, so both are validated before interpolation.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// AddItemWithExt inserts the RbumItem row and its type-specific extension
// row in one transaction. extTable is the governing
// kind's ext_table_name; ext maps extension columns to values. An empty
// extTable (kinds without an extension table, e.g. oauth2-client) degrades
// to a plain AddItem.
func (s *Store) AddItemWithExt(ctx context.Context, req AddItemReq, extTable string, ext map[string]any) (*Item, error) {
	if extTable == "" || len(ext) == 0 {
		return s.AddItem(ctx, req)
	}

	var item *Item
	err := s.InTx(ctx, func(tx *Store) error {
		added, err := tx.AddItem(ctx, req)
		if err != nil {
			return err
		}
		if err := tx.insertItemExt(ctx, extTable, added.ID, ext); err != nil {
			return err
		}
		item = added
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// insertItemExt writes one extension row keyed by the item id. Columns are
// sorted so the generated statement is deterministic.
func (s *Store) insertItemExt(ctx context.Context, table, itemID string, ext map[string]any) error {
	if !identPattern.MatchString(table) {
		return iamerr.BadRequest("rbum", "add-item-ext", fmt.Sprintf("invalid ext table name %q", table))
	}

	cols := make([]string, 0, len(ext))
	for col := range ext {
		if !identPattern.MatchString(col) {
			return iamerr.BadRequest("rbum", "add-item-ext", fmt.Sprintf("invalid ext column name %q", col))
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	names := []string{"id"}
	placeholders := []string{"$1"}
	args := []any{itemID}
	for _, col := range cols {
		args = append(args, ext[col])
		names = append(names, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "add-item-ext", "inserting ext row", err)
	}
	return nil
}

// GetItemExt reads an item's extension row as a column->value map, or nil
// when the kind carries no extension table or no row exists.
func (s *Store) GetItemExt(ctx context.Context, table, itemID string) (map[string]any, error) {
	if table == "" {
		return nil, nil
	}
	if !identPattern.MatchString(table) {
		return nil, iamerr.BadRequest("rbum", "get-item-ext", fmt.Sprintf("invalid ext table name %q", table))
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table), itemID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "get-item-ext", "fetching ext row", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	values, err := rows.Values()
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "get-item-ext", "scanning ext row", err)
	}
	out := make(map[string]any, len(values))
	for i, fd := range rows.FieldDescriptions() {
		out[fd.Name] = values[i]
	}
	return out, rows.Err()
}

// DeleteItemExt removes an item's extension row; absent rows are a no-op.
func (s *Store) DeleteItemExt(ctx context.Context, table, itemID string) error {
	if table == "" {
		return nil
	}
	if !identPattern.MatchString(table) {
		return iamerr.BadRequest("rbum", "delete-item-ext", fmt.Sprintf("invalid ext table name %q", table))
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), itemID); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-item-ext", "deleting ext row", err)
	}
	return nil
}
