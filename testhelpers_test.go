package tenantgate_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rickchristie/govner/pgflock/client"
	"github.com/rickchristie/tenantgate"
	"github.com/rs/zerolog"
)

const (
	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

func acquireTestDB(t *testing.T) string {
	t.Helper()
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Fatalf("Failed to acquire test database: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})
	return connStr
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() tenantgate.Config {
	return tenantgate.Config{
		Pool: tenantgate.PoolConfig{MaxConns: 5},
		Query: tenantgate.QueryConfig{
			DefaultTimeoutSeconds:     30,
			ShowTablesTimeoutSeconds:  10,
			ShowColumnsTimeoutSeconds: 10,
			MaxSQLLength:              100000,
			MaxResultLength:           100000,
		},
	}
}

// defaultSecurityContext grants the ad_field table (catalog ID 101) and the
// client 100 / org 200 tenant scope. m_product (102) is in the catalog but
// deliberately outside the accessible set.
func defaultSecurityContext() tenantgate.SecurityContext {
	return tenantgate.SecurityContext{
		AccessibleTableIDs: []string{"101"},
		ReadableClients:    []string{"100"},
		ReadableOrgs:       []string{"200"},
	}
}

// fixtureSQL is the application dictionary plus sample entity data every
// integration test runs against.
var fixtureSQL = []string{
	`CREATE TABLE ad_table (
		ad_table_id text PRIMARY KEY,
		tablename   text NOT NULL,
		name        text NOT NULL,
		description text
	)`,
	`CREATE TABLE ad_column (
		ad_column_id text PRIMARY KEY,
		ad_table_id  text NOT NULL,
		columnname   text NOT NULL,
		name         text NOT NULL,
		description  text
	)`,
	`CREATE TABLE ad_field (
		ad_field_id  text PRIMARY KEY,
		ad_client_id text NOT NULL,
		ad_org_id    text NOT NULL,
		name         text,
		description  text
	)`,
	`CREATE TABLE m_product (
		m_product_id text PRIMARY KEY,
		ad_client_id text NOT NULL,
		ad_org_id    text NOT NULL,
		name         text
	)`,
	`INSERT INTO ad_table VALUES
		('101', 'ad_field', 'Field', 'Window field definitions'),
		('102', 'm_product', 'Product', 'Product master')`,
	`INSERT INTO ad_column VALUES
		('201', '101', 'AD_Field_ID', 'Field ID', 'Primary key'),
		('202', '101', 'Name', 'Name', 'Field display name'),
		('203', '101', 'AD_Client_ID', 'Client', 'Owning client')`,
	`INSERT INTO ad_field VALUES
		('F1', '100', '200', 'Order Date', NULL),
		('F2', '100', '200', 'Order Total', 'Grand total field'),
		('F3', '100', '999', 'Hidden Org Field', NULL),
		('F4', '555', '200', 'Other Client Field', NULL)`,
	`INSERT INTO m_product VALUES
		('P1', '100', '200', 'Widget')`,
	`CREATE TABLE etrx_token_info (
		token               text NOT NULL,
		valid_until         timestamptz NOT NULL,
		middleware_provider text NOT NULL
	)`,
	`CREATE FUNCTION etcotp_sim_search(tname text, rec_id text, term text) RETURNS numeric AS $$
		SELECT CASE WHEN rec_id = term THEN 100 ELSE 0 END::numeric
	$$ LANGUAGE sql IMMUTABLE`,
}

// setupFixtures runs DDL/DML over a direct connection. The gateway's own
// sessions are read-only, so fixtures never go through it.
func setupFixtures(t *testing.T, connStr string, statements []string) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("fixture connection failed: %v", err)
	}
	defer conn.Close(ctx)
	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			t.Fatalf("fixture statement failed: %v\n%s", err, stmt)
		}
	}
}

// newTestInstance acquires a database, loads the standard fixtures, and
// creates a Gateway over it.
func newTestInstance(t *testing.T, config tenantgate.Config, opts ...tenantgate.Option) (*tenantgate.Gateway, string) {
	t.Helper()
	connStr := acquireTestDB(t)
	setupFixtures(t, connStr, fixtureSQL)
	ctx := context.Background()
	g, err := tenantgate.New(ctx, connStr, config, testLogger(), opts...)
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}
	t.Cleanup(func() { g.Close(ctx) })
	return g, connStr
}
