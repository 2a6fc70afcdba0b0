//go:build integration

package tenantgate_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rickchristie/tenantgate"
)

func execQuery(t *testing.T, g *tenantgate.Gateway, sctx tenantgate.SecurityContext, sql string) *tenantgate.QueryOutput {
	t.Helper()
	return g.ExecQuery(context.Background(), sctx, tenantgate.QueryInput{SQL: sql})
}

func TestExecQuery_InjectsTenantPredicate(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	out := execQuery(t, g, sctx, "SELECT f.name FROM ad_field f ORDER BY f.name")
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if !strings.Contains(out.QueryExecuted, "ad_client_id IN ('100')") {
		t.Fatalf("expected client predicate in executed SQL: %s", out.QueryExecuted)
	}
	if !strings.Contains(out.QueryExecuted, "ad_org_id IN ('200')") {
		t.Fatalf("expected org predicate in executed SQL: %s", out.QueryExecuted)
	}
	// F3 (other org) and F4 (other client) must be filtered out.
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(out.Rows), out.Rows)
	}
	if out.Rows[0][0] != "Order Date" || out.Rows[1][0] != "Order Total" {
		t.Fatalf("unexpected rows: %v", out.Rows)
	}
}

func TestExecQuery_PredicateConjoinsExistingWhere(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	out := execQuery(t, g, sctx, "SELECT f.name FROM ad_field f WHERE f.name = 'Hidden Org Field'")
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	// F3 matches the caller's WHERE but not the tenant scope.
	if len(out.Rows) != 0 {
		t.Fatalf("expected 0 rows, got %v", out.Rows)
	}
}

func TestExecQuery_RejectsNonSelect(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	for _, sql := range []string{
		"DELETE FROM ad_field",
		"UPDATE ad_field SET name = 'x'",
		"INSERT INTO ad_field (ad_field_id, ad_client_id, ad_org_id) VALUES ('X', '100', '200')",
		"DROP TABLE ad_field",
	} {
		out := execQuery(t, g, sctx, sql)
		if out.Error == "" {
			t.Fatalf("expected error for %q", sql)
		}
		if !strings.Contains(out.Error, "only SELECT statements are allowed") {
			t.Fatalf("expected SELECT-only error for %q, got: %s", sql, out.Error)
		}
	}
}

func TestExecQuery_RejectsMissingAlias(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	out := execQuery(t, g, sctx, "SELECT name FROM ad_field")
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "ad_field") || !strings.Contains(out.Error, "alias") {
		t.Fatalf("expected alias error naming ad_field, got: %s", out.Error)
	}
}

func TestExecQuery_RejectsInaccessibleTable(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	// m_product exists in the catalog but is outside the accessible set.
	out := execQuery(t, g, sctx, "SELECT p.name FROM m_product p")
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "m_product is not accessible") {
		t.Fatalf("expected accessibility error, got: %s", out.Error)
	}
}

func TestExecQuery_RejectsInaccessibleJoin(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	out := execQuery(t, g, sctx, "SELECT f.name FROM ad_field f JOIN m_product p ON p.ad_client_id = f.ad_client_id")
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "not accessible") {
		t.Fatalf("expected accessibility error, got: %s", out.Error)
	}
}

func TestExecQuery_EmptyAccessibleSetRejectsEverything(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()
	sctx.AccessibleTableIDs = nil

	out := execQuery(t, g, sctx, "SELECT f.name FROM ad_field f")
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "not accessible") {
		t.Fatalf("expected accessibility error, got: %s", out.Error)
	}
}

func TestExecQuery_NullRendersAsEmptyString(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	out := execQuery(t, g, sctx, "SELECT f.name, f.description FROM ad_field f ORDER BY f.name")
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	// F1 (Order Date) has a NULL description.
	if out.Rows[0][1] != "" {
		t.Fatalf("expected empty string for NULL, got %q", out.Rows[0][1])
	}
	if out.Rows[1][1] != "Grand total field" {
		t.Fatalf("expected description, got %q", out.Rows[1][1])
	}
}

func TestExecQuery_ColumnsMatchRowWidth(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())
	sctx := defaultSecurityContext()

	out := execQuery(t, g, sctx, "SELECT f.ad_field_id, f.name, f.description FROM ad_field f")
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if len(out.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %v", out.Columns)
	}
	for i, row := range out.Rows {
		if len(row) != len(out.Columns) {
			t.Fatalf("row %d width %d does not match %d columns", i, len(row), len(out.Columns))
		}
	}
}

func TestExecQuery_MaxSQLLength(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.MaxSQLLength = 20
	g, _ := newTestInstance(t, config)

	out := execQuery(t, g, defaultSecurityContext(), "SELECT f.name FROM ad_field f WHERE f.name = 'long enough'")
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "SQL query too long") {
		t.Fatalf("expected length error, got: %s", out.Error)
	}
}

func TestExecQuery_ResultTruncation(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.MaxResultLength = 10
	g, _ := newTestInstance(t, config)

	out := execQuery(t, g, defaultSecurityContext(), "SELECT f.name FROM ad_field f")
	if out.Error == "" {
		t.Fatal("expected truncation error")
	}
	if !strings.Contains(out.Error, "Result is too long") {
		t.Fatalf("expected truncation message, got: %s", out.Error)
	}
	if out.Rows != nil {
		t.Fatalf("expected rows dropped on truncation, got %v", out.Rows)
	}
}

func TestExecQuery_HintAppendedToError(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Hints = []tenantgate.HintRule{
		{Pattern: "has no alias", Message: "Give every table in FROM an alias, e.g. FROM ad_field f."},
	}
	g, _ := newTestInstance(t, config)

	out := execQuery(t, g, defaultSecurityContext(), "SELECT name FROM ad_field")
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "Give every table in FROM an alias") {
		t.Fatalf("expected hint appended, got: %s", out.Error)
	}
}

func TestExecQuery_SanitizationApplied(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Sanitization = []tenantgate.SanitizationRule{
		{Pattern: "Order", Replacement: "[MASKED]"},
	}
	g, _ := newTestInstance(t, config)

	out := execQuery(t, g, defaultSecurityContext(), "SELECT f.name FROM ad_field f ORDER BY f.name")
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if out.Rows[0][0] != "[MASKED] Date" {
		t.Fatalf("expected sanitized cell, got %q", out.Rows[0][0])
	}
}

func TestExecQuery_LegacyCheckIgnoredByDefault(t *testing.T) {
	t.Parallel()
	g, _ := newTestInstance(t, defaultConfig())

	// SecurityCheck=true without the config gate still runs the full
	// validation pipeline, so the missing alias is rejected.
	out := g.ExecQuery(context.Background(), defaultSecurityContext(), tenantgate.QueryInput{
		SQL:                 "SELECT name FROM ad_field",
		LegacySecurityCheck: true,
	})
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "alias") {
		t.Fatalf("expected alias error, got: %s", out.Error)
	}
}

func TestExecQuery_LegacyCheckSubstitutesMarker(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.AllowLegacySecurityCheck = true
	g, _ := newTestInstance(t, config)

	out := g.ExecQuery(context.Background(), defaultSecurityContext(), tenantgate.QueryInput{
		SQL:                 "SELECT f.name FROM ad_field f WHERE doSecurityCheck(f) ORDER BY f.name",
		LegacySecurityCheck: true,
	})
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if !strings.Contains(out.QueryExecuted, "f.ad_client_id IN ('100')") {
		t.Fatalf("expected substituted predicate: %s", out.QueryExecuted)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", out.Rows)
	}
}

func TestExecQuery_ReadOnlySessionBlocksWrites(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.AllowLegacySecurityCheck = true
	g, _ := newTestInstance(t, config)

	// The legacy path skips static validation, so this DELETE reaches the
	// database. The read-only session rejects it there.
	out := g.ExecQuery(context.Background(), defaultSecurityContext(), tenantgate.QueryInput{
		SQL:                 "DELETE FROM ad_field",
		LegacySecurityCheck: true,
	})
	if out.Error == "" {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Error, "read-only") {
		t.Fatalf("expected read-only rejection, got: %s", out.Error)
	}

	// Verify nothing was deleted through a fresh gateway.
	check := execQuery(t, g, defaultSecurityContext(), "SELECT f.ad_field_id FROM ad_field f")
	if check.Error != "" {
		t.Fatalf("unexpected error: %s", check.Error)
	}
	if len(check.Rows) != 2 {
		t.Fatalf("expected 2 tenant-visible rows after blocked DELETE, got %d", len(check.Rows))
	}
}
