package spi

import "testing"

func TestSchemaForPrivateIsPublic(t *testing.T) {
	if got := SchemaFor(true, Owner{ID: "tenant-1"}); got != PublicSchema {
		t.Errorf("SchemaFor(private) = %q, want %q", got, PublicSchema)
	}
}

func TestSchemaForSharedIsReproducible(t *testing.T) {
	a := SchemaFor(false, Owner{ID: "tenant-1"})
	b := SchemaFor(false, Owner{ID: "tenant-1"})
	if a != b {
		t.Errorf("expected SchemaFor to be reproducible from owner alone, got %q and %q", a, b)
	}
	if a == PublicSchema {
		t.Error("did not expect a shared-backend schema to equal the public schema")
	}
}

func TestSchemaForDistinctOwnersDiffer(t *testing.T) {
	a := SchemaFor(false, Owner{ID: "tenant-1"})
	b := SchemaFor(false, Owner{ID: "tenant-2"})
	if a == b {
		t.Error("expected distinct owners to derive distinct schemas")
	}
}

func TestTableNameWithAndWithoutTag(t *testing.T) {
	if got := TableName("spiabc", "rbum_item", ""); got != "spiabc.starsys_rbum_item" {
		t.Errorf("TableName() = %q", got)
	}
	if got := TableName("spiabc", "rbum_item", "archive"); got != "spiabc.starsys_rbum_item_archive" {
		t.Errorf("TableName() with tag = %q", got)
	}
}

func TestUpdateTimeTriggerSQLNamesMatchTable(t *testing.T) {
	sql := UpdateTimeTriggerSQL("spiabc", "rbum_item")
	if !contains(sql, "spiabc.starsys_rbum_item") {
		t.Error("expected the trigger SQL to reference the physical table name")
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
