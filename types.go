package tenantgate

import "context"

// Request parameter and response field names of the DBQueryExec webhook.
// The flat string map shape is wire-compatible with the original callers.
const (
	ParamMode          = "Mode"
	ParamQuery         = "Query"
	ParamTable         = "Table"
	ParamSecurityCheck = "SecurityCheck"

	FieldError         = "error"
	FieldData          = "data"
	FieldColumns       = "columns"
	FieldQueryExecuted = "queryExecuted"
)

// SecurityContext is the caller's per-request security bundle, supplied by
// the host's session layer. None of it is cached by the gateway.
//
// AccessibleTableIDs is the table-identifier set of the caller's writable
// entities; it gates which tables a statement may reference and which tables
// introspection lists. ReadableClients and ReadableOrgs feed the injected
// row-level predicate. The write/read asymmetry mirrors the upstream access
// model and is intentional.
type SecurityContext struct {
	AccessibleTableIDs []string
	ReadableClients    []string
	ReadableOrgs       []string
}

// QueryInput is the input of the query execution path.
type QueryInput struct {
	SQL string `json:"sql"`

	// LegacySecurityCheck requests the deprecated textual
	// doSecurityCheck(alias) substitution instead of AST rewriting.
	// Honored only when QueryConfig.AllowLegacySecurityCheck is set.
	LegacySecurityCheck bool `json:"legacy_security_check,omitempty"`
}

// QueryOutput is the output of the query execution path. All errors
// (validation rejections, parse errors, Postgres errors) are placed in Error;
// callers only need to check Error, never a Go error. Every cell value is
// coerced to text; SQL NULL renders as the empty string.
type QueryOutput struct {
	QueryExecuted string     `json:"query_executed"`
	Columns       []string   `json:"columns"`
	Rows          [][]string `json:"rows"`
	Error         string     `json:"error,omitempty"`
}

// TableListOutput is the output of the SHOW_TABLES introspection path.
// Data always starts with the fixed header row.
type TableListOutput struct {
	Data  [][]string `json:"data"`
	Error string     `json:"error,omitempty"`
}

// ShowColumnsInput is the input of the SHOW_COLUMNS introspection path.
// Table matches a descriptor by DB table name or logical name,
// case-insensitively.
type ShowColumnsInput struct {
	Table string `json:"table"`
}

// ColumnListOutput is the output of the SHOW_COLUMNS introspection path.
// Data always starts with the fixed header row.
type ColumnListOutput struct {
	Data  [][]string `json:"data"`
	Error string     `json:"error,omitempty"`
}

// Header rows prepended to the introspection outputs.
var (
	tableListHeader  = []string{"TABLENAME", "NAME", "DESCRIPTION"}
	columnListHeader = []string{"COLUMNNAME", "NAME", "DBTYPE", "DESCRIPTION"}
)

// SimSearchInput is the input of the similarity search webhook.
type SimSearchInput struct {
	Items         []string `json:"items"`
	EntityName    string   `json:"entity_name"`
	QtyResults    int      `json:"qty_results"`
	MinSimPercent int      `json:"min_sim_percent"`
}

// SimMatch is a single similarity search hit.
type SimMatch struct {
	ID                string `json:"id"`
	SimilarityPercent string `json:"similarity_percent"`
}

// SimSearchOutput maps item_<n> labels to their matches, in input order.
type SimSearchOutput struct {
	Results map[string][]SimMatch `json:"results"`
	Error   string                `json:"error,omitempty"`
}

// Agent is a single assistant entry returned by an AgentLister.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AgentLister is the collaborator contract of the assistant service consumed
// by the GetAvailableAgents webhook.
type AgentLister interface {
	ListAgents(ctx context.Context) ([]Agent, error)
}
