package tenantgate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rickchristie/tenantgate/internal/secfilter"
	"github.com/rickchristie/tenantgate/internal/sqlcheck"
)

// ExecQuery runs the full query pipeline: parse, validate against the
// caller's accessible tables, inject the tenant predicate, execute, and
// collect string-coerced rows. All errors are converted to output.Error and,
// where hint rules match, suffixed with guidance for the calling agent.
// Callers only need to check output.Error, never a Go error.
//
// Validation failures never reach the database; execution failures never
// return partial rows.
func (g *Gateway) ExecQuery(ctx context.Context, sctx SecurityContext, input QueryInput) *QueryOutput {
	startTime := time.Now()

	release, err := g.acquireSlot(ctx, "ExecQuery")
	if err != nil {
		return g.queryError(err)
	}
	defer release()

	// Length check before any parsing.
	if len(input.SQL) > g.config.Query.MaxSQLLength {
		return g.queryError(fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(input.SQL), g.config.Query.MaxSQLLength))
	}

	// The timeout covers the whole pipeline: the catalog lookup inside the
	// rewrite as well as execution.
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(g.config.Query.DefaultTimeoutSeconds)*time.Second)
	defer cancel()

	var finalSQL string
	legacy := input.LegacySecurityCheck && g.config.Query.AllowLegacySecurityCheck
	if legacy {
		finalSQL = secfilter.ApplyLegacy(input.SQL, sctx.ReadableClients, sctx.ReadableOrgs)
	} else {
		finalSQL, err = g.rewriteQuery(queryCtx, sctx, input.SQL)
		if err != nil {
			return g.queryError(err)
		}
	}

	conn, err := g.pool.Acquire(queryCtx)
	if err != nil {
		return g.queryError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, finalSQL)
	if err != nil {
		return g.queryError(err)
	}

	result, err := collectRows(rows)
	if err != nil {
		return g.queryError(err)
	}
	result.QueryExecuted = finalSQL

	sanitized := g.sanitizer.HasRules()
	result.Rows = g.sanitizer.SanitizeRows(result.Rows)

	g.truncateIfNeeded(result)

	logEvent := g.logger.Info().
		Str("sql", truncateForLog(finalSQL, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(result.Rows))
	if legacy {
		logEvent = logEvent.Bool("legacy_security_check", true)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return result
}

// rewriteQuery parses, validates, and tenant-scopes one SELECT, returning
// the SQL text to execute. The injected predicate is qualified by the first
// FROM item's alias.
func (g *Gateway) rewriteQuery(ctx context.Context, sctx SecurityContext, sql string) (string, error) {
	tree, err := sqlcheck.Parse(sql)
	if err != nil {
		return "", err
	}

	accessible, err := g.accessibleTableNames(ctx, sctx)
	if err != nil {
		return "", err
	}

	stmt, refs, err := sqlcheck.Validate(tree, accessible)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("statement references no table")
	}

	return secfilter.Apply(tree, stmt, refs[0].Alias, sctx.ReadableClients, sctx.ReadableOrgs)
}

// accessibleTableNames resolves the caller's writable table-ID set to DB
// table names for the accessibility check. Resolved fresh per request; the
// set is session-scoped and never cached.
func (g *Gateway) accessibleTableNames(ctx context.Context, sctx SecurityContext) ([]string, error) {
	tables, err := g.catalog.Tables(ctx, sctx.AccessibleTableIDs)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.DBTableName
	}
	return names, nil
}

// collectRows reads all rows from pgx.Rows into a QueryOutput with every
// cell coerced to text.
func collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([][]string, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = stringifyValue(v)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows}, nil
}

// stringifyValue coerces a pgx-returned value to its text representation.
// The response transport is a flat string map, so all cells are strings by
// contract; SQL NULL renders as the empty string.
func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return stringifyFloat(float64(val), 32)
	case float64:
		return stringifyFloat(val, 64)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case pgtype.Numeric:
		if !val.Valid {
			return ""
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	default:
		// Composite values (JSONB, arrays) and remaining pgtype values:
		// JSON where possible, %v as last resort.
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

func stringifyFloat(f float64, bits int) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// queryError converts any error into a QueryOutput with error message,
// suffixed with matching hint messages.
func (g *Gateway) queryError(err error) *QueryOutput {
	return &QueryOutput{Error: g.renderError(err)}
}

// renderError logs err and returns its message with matching hint guidance
// appended.
func (g *Gateway) renderError(err error) string {
	errMsg := err.Error()
	guidance := g.hints.Hint(errMsg)
	patterns := g.hints.Patterns(errMsg)

	logEvent := g.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("hints", patterns)
	}
	logEvent.Msg("gateway error")

	if guidance != "" {
		errMsg = errMsg + "\n\n" + guidance
	}
	return errMsg
}

// truncateIfNeeded truncates query output rows if they exceed
// MaxResultLength (in characters).
func (g *Gateway) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= g.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:g.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
