package tenantgate

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig         `json:"pool"`
	Query        QueryConfig        `json:"query"`
	Hints        []HintRule         `json:"hints"`
	Sanitization []SanitizationRule `json:"sanitization"`
	Timezone     string             `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
	Security   SecurityConfig   `json:"security"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	WebhookPath        string `json:"webhook_path"`
	MCPEnabled         bool   `json:"mcp_enabled"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// SecurityConfig is the security context CLI mode serves every request with.
// A multi-user host resolves a per-request SecurityContext from its session
// layer instead; this static form is for single-tenant service deployments.
type SecurityConfig struct {
	AccessibleTableIDs []string `json:"accessible_table_ids"`
	ReadableClients    []string `json:"readable_clients"`
	ReadableOrgs       []string `json:"readable_orgs"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds     int `json:"default_timeout_seconds"`
	ShowTablesTimeoutSeconds  int `json:"show_tables_timeout_seconds"`
	ShowColumnsTimeoutSeconds int `json:"show_columns_timeout_seconds"`
	MaxSQLLength              int `json:"max_sql_length"`
	MaxResultLength           int `json:"max_result_length"`

	// AllowLegacySecurityCheck enables the deprecated textual
	// doSecurityCheck(alias) substitution path for requests carrying
	// SecurityCheck=true. When false (the default) that parameter is
	// ignored and the AST pipeline runs unconditionally.
	AllowLegacySecurityCheck bool `json:"allow_legacy_security_check"`
}

// HintRule maps an error message pattern to a guidance message appended to
// the error returned to the calling agent.
type HintRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based result cell sanitization rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
