package tenantgate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Similarity search defaults, matching the original webhook contract.
const (
	defaultQtyResults    = 1
	defaultMinSimPercent = 30
)

// simSearchSQL scores rows of one table with the etcotp_sim_search database
// function. Table and key identifiers are catalog-resolved and quoted; only
// the search term and threshold travel as parameters.
const simSearchSQL = `
SELECT %s::text AS id, round(etcotp_sim_search($1, %s, $2)::numeric, 4)::text AS similarity
FROM %s
WHERE etcotp_sim_search($1, %s, $2) > $3
ORDER BY etcotp_sim_search($1, %s, $2) DESC
LIMIT %d;
`

// SimilaritySearch scores each input term against the rows of one accessible
// table using the etcotp_sim_search database function and returns, per term,
// the best-matching row IDs with their similarity percentage. The table
// resolves through the catalog within the caller's accessible set.
func (g *Gateway) SimilaritySearch(ctx context.Context, sctx SecurityContext, input SimSearchInput) (*SimSearchOutput, error) {
	startTime := time.Now()

	release, err := g.acquireSlot(ctx, "SimilaritySearch")
	if err != nil {
		return nil, err
	}
	defer release()

	qty := input.QtyResults
	if qty <= 0 {
		qty = defaultQtyResults
	}
	minPercent := input.MinSimPercent
	if minPercent <= 0 {
		minPercent = defaultMinSimPercent
	}

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(g.config.Query.DefaultTimeoutSeconds)*time.Second)
	defer cancel()

	table, err := g.catalog.ResolveTable(queryCtx, input.EntityName, sctx.AccessibleTableIDs)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("entity not found or not accessible: %s", input.EntityName)
	}

	// Primary key column follows the dictionary convention <tablename>_id.
	keyColumn := quoteIdent(strings.ToLower(table.DBTableName) + "_id")
	tableIdent := quoteIdent(strings.ToLower(table.DBTableName))
	sql := fmt.Sprintf(simSearchSQL, keyColumn, keyColumn, tableIdent, keyColumn, keyColumn, qty)

	results := make(map[string][]SimMatch, len(input.Items))
	for i, term := range input.Items {
		// Single quotes are stripped from terms, as the original webhook does.
		term = strings.ReplaceAll(term, "'", "")
		if strings.TrimSpace(term) == "" {
			continue
		}
		matches, err := g.searchTerm(queryCtx, sql, table.DBTableName, term, minPercent)
		if err != nil {
			return nil, err
		}
		results["item_"+strconv.Itoa(i)] = matches
	}

	g.logger.Info().
		Str("table", table.DBTableName).
		Dur("duration", time.Since(startTime)).
		Int("term_count", len(input.Items)).
		Msg("SimilaritySearch executed")

	return &SimSearchOutput{Results: results}, nil
}

func (g *Gateway) searchTerm(ctx context.Context, sql, tableName, term string, minPercent int) ([]SimMatch, error) {
	rows, err := g.pool.Query(ctx, sql, strings.ToLower(tableName), term, minPercent)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	matches := []SimMatch{}
	for rows.Next() {
		var m SimMatch
		if err := rows.Scan(&m.ID, &m.SimilarityPercent); err != nil {
			return nil, fmt.Errorf("similarity search scan failed: %w", err)
		}
		m.SimilarityPercent += "%"
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search rows error: %w", err)
	}
	return matches, nil
}

// SimSearchWebhook adapts SimilaritySearch to the flat webhook shape:
// items (JSON array of terms), entityName, optional qtyResults and
// minSimPercent.
func (g *Gateway) SimSearchWebhook(ctx context.Context, sctx SecurityContext, params map[string]string) map[string]string {
	g.logParams("SimSearch", params)

	itemsJSON := params["items"]
	entityName := params["entityName"]
	if itemsJSON == "" || entityName == "" {
		return map[string]string{FieldError: "Missing required parameters"}
	}

	var items []string
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return g.errorResponse(fmt.Errorf("invalid items parameter: %w", err))
	}

	input := SimSearchInput{
		Items:         items,
		EntityName:    entityName,
		QtyResults:    intParam(params, "qtyResults", defaultQtyResults),
		MinSimPercent: intParam(params, "minSimPercent", defaultMinSimPercent),
	}

	out, err := g.SimilaritySearch(ctx, sctx, input)
	if err != nil {
		return g.errorResponse(err)
	}
	b, err := json.Marshal(out.Results)
	if err != nil {
		return g.errorResponse(err)
	}
	return map[string]string{"message": string(b)}
}

// intParam reads an integer webhook parameter, tolerating absent, empty, and
// literal "null" values the way the original callers send them.
func intParam(params map[string]string, key string, fallback int) int {
	raw := params[key]
	if raw == "" || strings.EqualFold(raw, "null") {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// quoteIdent escapes a SQL identifier. Doubles embedded double-quotes and
// wraps in double-quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
