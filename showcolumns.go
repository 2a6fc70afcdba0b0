package tenantgate

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoTable reports a SHOW_COLUMNS target that resolved to no accessible
// table.
var ErrNoTable = errors.New("no such table")

const physicalColumnsSQL = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE upper(table_name) = upper($1)
ORDER BY ordinal_position;
`

// ShowColumns lists the physical columns of one accessible table as
// [COLUMNNAME, NAME, DBTYPE, DESCRIPTION] rows under the fixed header row.
// The table resolves by DB or logical name, case-insensitively, within the
// caller's accessible set; an unresolvable name returns ErrNoTable.
//
// The physical column list comes from information_schema so that schema
// drift between the database and the catalog never hides a column; columns
// the catalog does not know are emitted with blank enrichment fields.
func (g *Gateway) ShowColumns(ctx context.Context, sctx SecurityContext, input ShowColumnsInput) (*ColumnListOutput, error) {
	startTime := time.Now()

	release, err := g.acquireSlot(ctx, "ShowColumns")
	if err != nil {
		return nil, err
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(g.config.Query.ShowColumnsTimeoutSeconds)*time.Second)
	defer cancel()

	table, err := g.catalog.ResolveTable(queryCtx, input.Table, sctx.AccessibleTableIDs)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, ErrNoTable
	}

	descriptors, err := g.catalog.Columns(queryCtx, table.ID)
	if err != nil {
		return nil, err
	}

	conn, err := g.pool.Acquire(queryCtx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, physicalColumnsSQL, table.DBTableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := [][]string{columnListHeader}
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return nil, err
		}
		row := []string{columnName, "", "", ""}
		if desc := matchColumn(descriptors, columnName); desc != nil {
			row[1] = desc.Name
			row[2] = dataType
			row[3] = desc.Description
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("table", table.DBTableName).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(data)-1).
		Msg("ShowColumns executed")

	return &ColumnListOutput{Data: data}, nil
}

// matchColumn finds the descriptor whose DB column name matches
// case-insensitively, or nil.
func matchColumn(descriptors []ColumnDescriptor, columnName string) *ColumnDescriptor {
	for i := range descriptors {
		if strings.EqualFold(descriptors[i].DBColumnName, columnName) {
			return &descriptors[i]
		}
	}
	return nil
}
