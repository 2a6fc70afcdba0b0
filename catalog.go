package tenantgate

import "context"

// TableDescriptor is an immutable snapshot of a table's catalog metadata.
type TableDescriptor struct {
	ID          string `json:"id"`
	DBTableName string `json:"db_table_name"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ColumnDescriptor is an immutable snapshot of a column's catalog metadata.
// DBType is filled from the live information schema at listing time; catalogs
// that do not track a SQL type leave it empty.
type ColumnDescriptor struct {
	DBColumnName string `json:"db_column_name"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DBType       string `json:"db_type,omitempty"`
}

// Catalog resolves table and column metadata for a caller's accessible-table
// identifier set. Implementations must treat the identifier set as
// request-scoped and security-sensitive: results are never cached across
// calls with different sets.
type Catalog interface {
	// Tables returns descriptors for every identifier in ids that exists,
	// ordered by DB table name.
	Tables(ctx context.Context, ids []string) ([]TableDescriptor, error)

	// ResolveTable finds at most one descriptor within ids whose DB table
	// name or logical name matches name case-insensitively. Returns
	// (nil, nil) when nothing matches.
	ResolveTable(ctx context.Context, name string, ids []string) (*TableDescriptor, error)

	// Columns returns the column descriptors of one table.
	Columns(ctx context.Context, tableID string) ([]ColumnDescriptor, error)
}
