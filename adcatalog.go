package tenantgate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQL queries for the application dictionary catalog

const adTablesSQL = `
SELECT ad_table_id, tablename, name, COALESCE(description, '')
FROM ad_table
WHERE ad_table_id = ANY($1)
ORDER BY tablename;
`

const adResolveTableSQL = `
SELECT ad_table_id, tablename, name, COALESCE(description, '')
FROM ad_table
WHERE (lower(tablename) = lower($1) OR lower(name) = lower($1))
  AND ad_table_id = ANY($2)
ORDER BY tablename
LIMIT 1;
`

const adColumnsSQL = `
SELECT columnname, name, COALESCE(description, '')
FROM ad_column
WHERE ad_table_id = $1
ORDER BY columnname;
`

// ADCatalog is the Catalog implementation backed by the ERP application
// dictionary (ad_table / ad_column). It borrows the gateway's pool and owns
// no connections of its own.
type ADCatalog struct {
	pool *pgxpool.Pool
}

// NewADCatalog creates an ADCatalog over the given pool.
func NewADCatalog(pool *pgxpool.Pool) *ADCatalog {
	return &ADCatalog{pool: pool}
}

// Tables implements Catalog.
func (c *ADCatalog) Tables(ctx context.Context, ids []string) ([]TableDescriptor, error) {
	if len(ids) == 0 {
		return []TableDescriptor{}, nil
	}
	rows, err := c.pool.Query(ctx, adTablesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad_table: %w", err)
	}
	defer rows.Close()

	tables := []TableDescriptor{}
	for rows.Next() {
		var t TableDescriptor
		if err := rows.Scan(&t.ID, &t.DBTableName, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan ad_table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ad_table rows error: %w", err)
	}
	return tables, nil
}

// ResolveTable implements Catalog.
func (c *ADCatalog) ResolveTable(ctx context.Context, name string, ids []string) (*TableDescriptor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var t TableDescriptor
	err := c.pool.QueryRow(ctx, adResolveTableSQL, name, ids).
		Scan(&t.ID, &t.DBTableName, &t.Name, &t.Description)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve table %q: %w", name, err)
	}
	return &t, nil
}

// Columns implements Catalog.
func (c *ADCatalog) Columns(ctx context.Context, tableID string) ([]ColumnDescriptor, error) {
	rows, err := c.pool.Query(ctx, adColumnsSQL, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad_column: %w", err)
	}
	defer rows.Close()

	cols := []ColumnDescriptor{}
	for rows.Next() {
		var col ColumnDescriptor
		if err := rows.Scan(&col.DBColumnName, &col.Name, &col.Description); err != nil {
			return nil, fmt.Errorf("failed to scan ad_column row: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ad_column rows error: %w", err)
	}
	return cols, nil
}
