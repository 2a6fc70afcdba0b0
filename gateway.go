package tenantgate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rickchristie/tenantgate/internal/hint"
	"github.com/rickchristie/tenantgate/internal/sanitize"
)

// Gateway is the core engine behind the DBQueryExec webhook: query execution
// with tenant-predicate rewriting, plus the SHOW_TABLES and SHOW_COLUMNS
// introspection paths. All exported methods are safe for concurrent use from
// multiple goroutines; all security state travels in the per-call
// SecurityContext.
type Gateway struct {
	config    Config
	pool      *pgxpool.Pool
	catalog   Catalog
	agents    AgentLister
	semaphore chan struct{}
	sanitizer *sanitize.Sanitizer
	hints     *hint.Matcher
	logger    zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	catalog Catalog
	agents  AgentLister
}

// WithCatalog overrides the default application-dictionary catalog.
func WithCatalog(c Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithAgentLister supplies the assistant service consumed by the
// GetAvailableAgents webhook. Without it that webhook reports an error.
func WithAgentLister(l AgentLister) Option {
	return func(o *options) {
		o.agents = l
	}
}

// New creates a new Gateway. connString is the PostgreSQL connection string
// (must include credentials). Panics on invalid config. Returns error only
// for runtime failures (e.g., pool creation).
//
// Every pooled connection is forced read-only at the session level: the
// gateway executes nothing but rewritten SELECTs, and the database enforces
// that even if a statement slips past static validation.
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger, opts ...Option) (*Gateway, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("tenantgate: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("tenantgate: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("tenantgate: query.default_timeout_seconds must be > 0")
	}
	if config.Query.ShowTablesTimeoutSeconds <= 0 {
		panic("tenantgate: query.show_tables_timeout_seconds must be > 0")
	}
	if config.Query.ShowColumnsTimeoutSeconds <= 0 {
		panic("tenantgate: query.show_columns_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("tenantgate: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("tenantgate: query.max_result_length must be > 0")
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("tenantgate: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("tenantgate: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("tenantgate: invalid pool.health_check_period %q: %v", config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
		if config.Timezone != "" {
			escaped := strings.ReplaceAll(config.Timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
		}
		return nil
	}

	// --- Create pool ---

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// --- Initialize internal components ---

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		pool.Close()
		return nil, err
	}
	matcher, err := hint.NewMatcher(mapHintRules(config.Hints))
	if err != nil {
		pool.Close()
		return nil, err
	}

	catalog := o.catalog
	if catalog == nil {
		catalog = NewADCatalog(pool)
	}

	return &Gateway{
		config:    config,
		pool:      pool,
		catalog:   catalog,
		agents:    o.agents,
		semaphore: make(chan struct{}, config.Pool.MaxConns),
		sanitizer: san,
		hints:     matcher,
		logger:    logger,
	}, nil
}

// Ping verifies database connectivity.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// Close closes the connection pool. Accepts context for API
// forward-compatibility, but does not currently use it — pgxpool.Pool.Close()
// does not support context-based shutdown.
func (g *Gateway) Close(ctx context.Context) {
	g.pool.Close()
}

// acquireSlot bounds concurrent statements at pool.max_conns. Respects
// context cancellation to prevent deadlock while waiting.
func (g *Gateway) acquireSlot(ctx context.Context, op string) (release func(), err error) {
	select {
	case g.semaphore <- struct{}{}:
		return func() { <-g.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", op, cap(g.semaphore), ctx.Err())
	}
}

// mapSanitizationRules converts tenantgate SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapHintRules converts tenantgate HintRules to internal hint.Rules.
func mapHintRules(rules []HintRule) []hint.Rule {
	result := make([]hint.Rule, len(rules))
	for i, r := range rules {
		result[i] = hint.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
