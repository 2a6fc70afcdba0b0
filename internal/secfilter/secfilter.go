// Package secfilter injects the tenant row-level predicate into a parsed
// SELECT and serializes it back to SQL. The predicate is a conjunction of two
// membership tests over the caller's readable client and organization sets:
//
//	<alias>.ad_client_id IN ('...') AND <alias>.ad_org_id IN ('...')
//
// Injection happens at the AST level, so an existing WHERE clause is ANDed
// with the predicate without disturbing operator precedence. The package also
// carries the deprecated textual doSecurityCheck(alias) substitution kept for
// wire compatibility with pre-parser callers.
package secfilter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

const (
	clientColumn = "ad_client_id"
	orgColumn    = "ad_org_id"
)

// ErrEmptyTenantScope rejects a caller whose readable client or organization
// set is empty. An empty set would mean an empty IN list, which cannot be
// serialized; such a caller can see no rows at all.
var ErrEmptyTenantScope = errors.New("tenant scope is empty: caller has no readable clients or organizations")

// Apply conjoins the tenant predicate for alias onto the SELECT's WHERE
// clause (creating one if absent), then deparses the whole tree back to SQL
// text. The tree is mutated in place; it is request-owned and discarded after
// serialization.
func Apply(tree *pg_query.ParseResult, stmt *pg_query.SelectStmt, alias string, clients, orgs []string) (string, error) {
	if len(clients) == 0 || len(orgs) == 0 {
		return "", ErrEmptyTenantScope
	}
	pred := predicate(alias, clients, orgs)
	if stmt.WhereClause == nil {
		stmt.WhereClause = pred
	} else {
		stmt.WhereClause = pg_query.MakeBoolExprNode(
			pg_query.BoolExprType_AND_EXPR,
			[]*pg_query.Node{stmt.WhereClause, pred},
			-1,
		)
	}
	sql, err := pg_query.Deparse(tree)
	if err != nil {
		return "", fmt.Errorf("failed to serialize rewritten statement: %w", err)
	}
	return sql, nil
}

// predicate builds <alias>.ad_client_id IN (clients) AND <alias>.ad_org_id IN (orgs).
func predicate(alias string, clients, orgs []string) *pg_query.Node {
	return pg_query.MakeBoolExprNode(
		pg_query.BoolExprType_AND_EXPR,
		[]*pg_query.Node{
			inExpr(alias, clientColumn, clients),
			inExpr(alias, orgColumn, orgs),
		},
		-1,
	)
}

// inExpr builds <alias>.<column> IN ('id', ...) with the IDs as string constants.
func inExpr(alias, column string, ids []string) *pg_query.Node {
	items := make([]*pg_query.Node, len(ids))
	for i, id := range ids {
		items[i] = pg_query.MakeAConstStrNode(id, -1)
	}
	columnRef := pg_query.MakeColumnRefNode([]*pg_query.Node{
		pg_query.MakeStrNode(alias),
		pg_query.MakeStrNode(column),
	}, -1)
	return pg_query.MakeAExprNode(
		pg_query.A_Expr_Kind_AEXPR_IN,
		[]*pg_query.Node{pg_query.MakeStrNode("=")},
		columnRef,
		pg_query.MakeListNode(items),
		-1,
	)
}

// legacyMarker matches doSecurityCheck(<alias>) case-insensitively,
// capturing the alias.
var legacyMarker = regexp.MustCompile(`(?i)doSecurityCheck\(\s*([A-Za-z_][A-Za-z0-9_$]*)\s*\)`)

// ApplyLegacy replaces every doSecurityCheck(<alias>) marker in raw SQL text
// with the tenant predicate for that alias.
//
// Deprecated: textual substitution cannot see nested parentheses or quoting
// context and runs on unvalidated SQL. It exists solely for wire
// compatibility with pre-parser callers; new callers must use the AST path,
// which security-gates unconditionally.
func ApplyLegacy(sql string, clients, orgs []string) string {
	return legacyMarker.ReplaceAllStringFunc(sql, func(marker string) string {
		alias := legacyMarker.FindStringSubmatch(marker)[1]
		return fmt.Sprintf("(%s.%s IN (%s) AND %s.%s IN (%s))",
			alias, clientColumn, quotedList(clients),
			alias, orgColumn, quotedList(orgs))
	})
}

// quotedList renders ids as 'a', 'b', 'c' with embedded quotes doubled.
func quotedList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
