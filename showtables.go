package tenantgate

import (
	"context"
	"time"
)

// ShowTables lists the caller's accessible tables as
// [TABLENAME, NAME, DESCRIPTION] rows under the fixed header row. An empty
// accessible set yields only the header. No caller SQL is involved; the
// parser and rewriter are bypassed.
func (g *Gateway) ShowTables(ctx context.Context, sctx SecurityContext) (*TableListOutput, error) {
	startTime := time.Now()

	release, err := g.acquireSlot(ctx, "ShowTables")
	if err != nil {
		return nil, err
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(g.config.Query.ShowTablesTimeoutSeconds)*time.Second)
	defer cancel()

	tables, err := g.catalog.Tables(queryCtx, sctx.AccessibleTableIDs)
	if err != nil {
		return nil, err
	}

	data := make([][]string, 0, len(tables)+1)
	data = append(data, tableListHeader)
	for _, t := range tables {
		data = append(data, []string{t.DBTableName, t.Name, t.Description})
	}

	g.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ShowTables executed")

	return &TableListOutput{Data: data}, nil
}
