package tenantgate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoQuery reports a query-mode request without a Query parameter.
var ErrNoQuery = errors.New("no query supplied")

// Dispatch modes, matched case-insensitively on the Mode parameter.
// Anything else falls through to query execution.
const (
	ModeShowTables  = "SHOW_TABLES"
	ModeShowColumns = "SHOW_COLUMNS"
)

// Dispatch is the DBQueryExec webhook entry point. It selects one of the
// three modes from params and returns the flat response map: named string
// fields on success, a single "error" field on failure. Every downstream
// error is caught here; Dispatch never panics through and never returns a Go
// error to the transport layer.
func (g *Gateway) Dispatch(ctx context.Context, sctx SecurityContext, params map[string]string) map[string]string {
	g.logParams("DBQueryExec", params)

	mode := params[ParamMode]
	switch {
	case strings.EqualFold(mode, ModeShowTables):
		out, err := g.ShowTables(ctx, sctx)
		if err != nil {
			return g.errorResponse(err)
		}
		return map[string]string{FieldData: marshalJSON(out.Data)}

	case strings.EqualFold(mode, ModeShowColumns):
		table := params[ParamTable]
		if table == "" {
			return g.errorResponse(ErrNoTable)
		}
		out, err := g.ShowColumns(ctx, sctx, ShowColumnsInput{Table: table})
		if err != nil {
			return g.errorResponse(err)
		}
		return map[string]string{FieldData: marshalJSON(out.Data)}

	default:
		query := params[ParamQuery]
		if query == "" {
			return g.errorResponse(ErrNoQuery)
		}
		out := g.ExecQuery(ctx, sctx, QueryInput{
			SQL:                 query,
			LegacySecurityCheck: strings.EqualFold(params[ParamSecurityCheck], "true"),
		})
		if out.Error != "" {
			return map[string]string{FieldError: out.Error}
		}
		return map[string]string{
			FieldQueryExecuted: out.QueryExecuted,
			FieldColumns:       marshalJSON(out.Columns),
			FieldData:          marshalJSON(out.Rows),
		}
	}
}

// WebhookFunc is the shape of a named webhook handler: flat string params
// in, flat string fields out, errors always mapped to an "error" field.
type WebhookFunc func(ctx context.Context, sctx SecurityContext, params map[string]string) map[string]string

// Webhooks returns every webhook the gateway serves, keyed by webhook name.
func (g *Gateway) Webhooks() map[string]WebhookFunc {
	return map[string]WebhookFunc{
		"DBQueryExec":        g.Dispatch,
		"SimSearch":          g.SimSearchWebhook,
		"ReadOAuthToken":     g.ReadOAuthTokenWebhook,
		"GetAvailableAgents": g.AvailableAgentsWebhook,
	}
}

// errorResponse converts err into the error-result response shape, with
// matching hint guidance appended.
func (g *Gateway) errorResponse(err error) map[string]string {
	return map[string]string{FieldError: g.renderError(err)}
}

// logParams logs the inbound parameters of a webhook call for diagnostics.
func (g *Gateway) logParams(webhook string, params map[string]string) {
	if g.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	for k, v := range params {
		g.logger.Debug().
			Str("webhook", webhook).
			Str("param", k).
			Str("value", truncateForLog(v, 200)).
			Msg("webhook parameter")
	}
}

// marshalJSON serializes v for a flat response field. The inputs are plain
// string slices built by this package; marshalling them cannot fail.
func marshalJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
