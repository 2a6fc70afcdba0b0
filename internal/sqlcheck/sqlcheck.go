// Package sqlcheck statically validates caller-supplied SQL before the
// tenant rewriter ever sees it. It parses with pg_query_go (PostgreSQL's
// actual C parser) and enforces three preconditions in order: the statement
// is a single plain SELECT, every table reference carries an explicit alias,
// and every referenced table is in the caller's accessible set.
package sqlcheck

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ErrNotSelect rejects every statement kind other than a plain SELECT.
var ErrNotSelect = errors.New("only SELECT statements are allowed")

// MissingAliasError rejects a table reference without an explicit alias.
// Injected predicates are qualified by alias; an unaliased reference makes
// correct qualification impossible once a statement contains self-joins.
type MissingAliasError struct {
	Table string
}

func (e *MissingAliasError) Error() string {
	return fmt.Sprintf("table %s has no alias: every referenced table must declare one", e.Table)
}

// NotAccessibleError rejects a table outside the caller's accessible set.
type NotAccessibleError struct {
	Table string
}

func (e *NotAccessibleError) Error() string {
	return fmt.Sprintf("table %s is not accessible", e.Table)
}

// UnsupportedFromItemError rejects FROM clause constructs the gateway cannot
// validate (subselects, functions, table samples).
type UnsupportedFromItemError struct {
	Kind string
}

func (e *UnsupportedFromItemError) Error() string {
	return fmt.Sprintf("unsupported FROM clause item: %s", e.Kind)
}

// TableRef is a single table reference found in the FROM clause.
type TableRef struct {
	Name  string
	Alias string
}

// Parse parses sql into a tree, rejecting empty and multi-statement input.
func Parse(sql string) (*pg_query.ParseResult, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("SQL parse error: %w", err)
	}
	if len(tree.Stmts) == 0 {
		return nil, fmt.Errorf("SQL parse error: empty query")
	}
	if len(tree.Stmts) > 1 {
		return nil, fmt.Errorf("multi-statement queries are not allowed: found %d statements", len(tree.Stmts))
	}
	return tree, nil
}

// Select returns the statement's SelectStmt, or ErrNotSelect for any other
// statement kind. Set operations (UNION/INTERSECT/EXCEPT) and WITH clauses
// are rejected: the rewriter scopes exactly one top-level SELECT.
func Select(tree *pg_query.ParseResult) (*pg_query.SelectStmt, error) {
	node := tree.Stmts[0].Stmt
	sel, ok := node.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return nil, ErrNotSelect
	}
	stmt := sel.SelectStmt
	if stmt.Op != pg_query.SetOperation_SETOP_NONE {
		return nil, fmt.Errorf("set operations are not allowed: %w", ErrNotSelect)
	}
	if stmt.WithClause != nil {
		return nil, fmt.Errorf("WITH clauses are not allowed: %w", ErrNotSelect)
	}
	return stmt, nil
}

// Tables collects every table reference in the SELECT's FROM clause,
// recursing through joins. FROM items that are not tables or joins cannot be
// tenant-scoped and are rejected.
func Tables(stmt *pg_query.SelectStmt) ([]TableRef, error) {
	var refs []TableRef
	for _, item := range stmt.FromClause {
		if err := collectFromItem(item, &refs); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func collectFromItem(node *pg_query.Node, refs *[]TableRef) error {
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		ref := TableRef{Name: n.RangeVar.Relname}
		if n.RangeVar.Alias != nil {
			ref.Alias = n.RangeVar.Alias.Aliasname
		}
		*refs = append(*refs, ref)
		return nil
	case *pg_query.Node_JoinExpr:
		if err := collectFromItem(n.JoinExpr.Larg, refs); err != nil {
			return err
		}
		return collectFromItem(n.JoinExpr.Rarg, refs)
	case *pg_query.Node_RangeSubselect:
		return &UnsupportedFromItemError{Kind: "subquery"}
	case *pg_query.Node_RangeFunction:
		return &UnsupportedFromItemError{Kind: "function"}
	case *pg_query.Node_RangeTableSample:
		return &UnsupportedFromItemError{Kind: "table sample"}
	case *pg_query.Node_RangeTableFunc:
		return &UnsupportedFromItemError{Kind: "table function"}
	default:
		return &UnsupportedFromItemError{Kind: "unrecognized"}
	}
}

// CheckAliases fails on the first table reference without a non-empty alias.
func CheckAliases(refs []TableRef) error {
	for _, ref := range refs {
		if ref.Alias == "" {
			return &MissingAliasError{Table: ref.Name}
		}
	}
	return nil
}

// CheckAccessible fails on the first referenced table whose name has no
// case-insensitive match in accessible (DB table names).
func CheckAccessible(refs []TableRef, accessible []string) error {
	for _, ref := range refs {
		if !containsFold(accessible, ref.Name) {
			return &NotAccessibleError{Table: ref.Name}
		}
	}
	return nil
}

// Validate runs the full precondition chain and returns the SELECT plus its
// table references for the rewriter.
func Validate(tree *pg_query.ParseResult, accessible []string) (*pg_query.SelectStmt, []TableRef, error) {
	stmt, err := Select(tree)
	if err != nil {
		return nil, nil, err
	}
	refs, err := Tables(stmt)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckAliases(refs); err != nil {
		return nil, nil, err
	}
	if err := CheckAccessible(refs, accessible); err != nil {
		return nil, nil, err
	}
	return stmt, refs, nil
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
