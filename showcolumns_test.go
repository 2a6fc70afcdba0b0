//go:build integration

package tenantgate_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rickchristie/tenantgate"
)

func showColumns(t *testing.T, g *tenantgate.Gateway, table string) *tenantgate.ColumnListOutput {
	t.Helper()
	out, err := g.ShowColumns(context.Background(), defaultSecurityContext(), tenantgate.ShowColumnsInput{Table: table})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

func findRow(data [][]string, columnName string) []string {
	for _, row := range data[1:] {
		if row[0] == columnName {
			return row
		}
	}
	return nil
}

func TestShowColumns_ListsPhysicalColumns(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	out := showColumns(t, g, "ad_field")
	header := out.Data[0]
	if header[0] != "COLUMNNAME" || header[1] != "NAME" || header[2] != "DBTYPE" || header[3] != "DESCRIPTION" {
		t.Fatalf("unexpected header: %v", header)
	}
	// One row per physical column of ad_field.
	if len(out.Data) != 6 {
		t.Fatalf("expected header plus 5 columns, got %d rows", len(out.Data))
	}
}

func TestShowColumns_EnrichesFromCatalog(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	out := showColumns(t, g, "ad_field")

	// ad_field_id is AD_Field_ID in the catalog; the match is case-insensitive.
	row := findRow(out.Data, "ad_field_id")
	if row == nil {
		t.Fatalf("ad_field_id not listed: %v", out.Data)
	}
	if row[1] != "Field ID" || row[2] != "text" || row[3] != "Primary key" {
		t.Fatalf("unexpected enrichment: %v", row)
	}

	// ad_org_id has no catalog entry; enrichment fields stay blank.
	row = findRow(out.Data, "ad_org_id")
	if row == nil {
		t.Fatalf("ad_org_id not listed: %v", out.Data)
	}
	if row[1] != "" || row[2] != "" || row[3] != "" {
		t.Fatalf("expected blank enrichment for uncataloged column, got %v", row)
	}
}

func TestShowColumns_ResolvesByLogicalName(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	byDBName := showColumns(t, g, "ad_field")
	byLogical := showColumns(t, g, "Field")
	if !reflect.DeepEqual(byDBName.Data, byLogical.Data) {
		t.Fatalf("expected identical output for DB name and logical name:\n%v\n%v", byDBName.Data, byLogical.Data)
	}
}

func TestShowColumns_ResolvesCaseInsensitively(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	lower := showColumns(t, g, "ad_field")
	upper := showColumns(t, g, "AD_FIELD")
	if !reflect.DeepEqual(lower.Data, upper.Data) {
		t.Fatal("expected case-insensitive table resolution")
	}
}

func TestShowColumns_UnknownTable(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	_, err := g.ShowColumns(context.Background(), defaultSecurityContext(), tenantgate.ShowColumnsInput{Table: "nonexistent"})
	if !errors.Is(err, tenantgate.ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got: %v", err)
	}
}

func TestShowColumns_InaccessibleTable(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	// m_product resolves in the catalog but not within the accessible set.
	_, err := g.ShowColumns(context.Background(), defaultSecurityContext(), tenantgate.ShowColumnsInput{Table: "m_product"})
	if !errors.Is(err, tenantgate.ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got: %v", err)
	}
}
