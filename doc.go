// Package tenantgate is a tenant-scoped SQL read gateway for multi-tenant
// ERP databases built on an Openbravo-style application dictionary.
//
// It accepts an arbitrary caller-supplied SELECT statement (or one of two
// schema introspection requests), statically validates it, rewrites its WHERE
// clause to enforce row-level tenant security, executes it, and returns a
// structured, string-coerced result set. Validation and rewriting happen at
// the AST level using PostgreSQL's actual C parser via pg_query: a statement
// is executed only after every table reference has been checked against the
// caller's accessible-table set and the tenant predicate
// (<alias>.ad_client_id IN (...) AND <alias>.ad_org_id IN (...)) has been
// conjoined onto its WHERE clause.
//
// # Library Usage
//
//	g, err := tenantgate.New(ctx, connString, tenantgate.Config{
//		Pool: tenantgate.PoolConfig{MaxConns: 10},
//		Query: tenantgate.QueryConfig{
//			DefaultTimeoutSeconds:     30,
//			ShowTablesTimeoutSeconds:  10,
//			ShowColumnsTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Close(ctx)
//
//	sctx := tenantgate.SecurityContext{
//		AccessibleTableIDs: []string{"104"},
//		ReadableClients:    []string{"23C59575B9CF467C9620760EB255B389"},
//		ReadableOrgs:       []string{"0"},
//	}
//	resp := g.Dispatch(ctx, sctx, map[string]string{
//		"Query": "SELECT * FROM ad_field af",
//	})
//
// The SecurityContext is an explicit per-request bundle supplied by the host;
// the gateway never caches it and holds no cross-request state of its own.
// Table accessibility is checked against the caller's writable-entity table
// set while row filtering uses the readable client/organization sets; the two
// checks are deliberately distinct and are pinned by tests.
//
// All failures (parse errors, validation rejections, database errors) are
// converted to an "error" field in the flat response map at the dispatch
// boundary. Callers never see a Go error from Dispatch.
//
// Beside the SQL gateway, the package ships the toolpack's sibling read-only
// webhooks: similarity search over an accessible table (via the
// etcotp_sim_search database function), stored OAuth token lookup, and
// available-agent listing. Gateway.Webhooks returns all of them keyed by
// webhook name. The same gateway operations can also be registered as MCP
// tools via RegisterMCPTools.
package tenantgate
