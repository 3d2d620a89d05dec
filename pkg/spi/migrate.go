package spi

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// RunSchemaMigrations applies migrationsDir against databaseURL, the same
// way every SPI tenant schema is brought up to date — the connection
// string is expected to carry the target schema in its search_path, one
// migrator invocation per isolation schema.
func RunSchemaMigrations(databaseURL, migrationsDir string) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsDir), databaseURL)
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "spi", "migrate", "creating migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return iamerr.Wrap(iamerr.KindInternal, "spi", "migrate", "running migrations", err)
	}
	return nil
}

// UpdateTimeTriggerSQL renders the trigger that auto-advances a table's
// update_time column on every row UPDATE, installed
// once per physical table that declares such a field.
func UpdateTimeTriggerSQL(schema, table string) string {
	physical := TableName(schema, table, "")
	fn := Flag + "_" + table + "_set_update_time"
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %s.%s() RETURNS trigger AS $$
BEGIN
  NEW.update_time = now();
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS %s_trigger ON %s;
CREATE TRIGGER %s_trigger BEFORE UPDATE ON %s
FOR EACH ROW EXECUTE FUNCTION %s.%s();
`, schema, fn, fn, physical, fn, physical, schema, fn)
}
