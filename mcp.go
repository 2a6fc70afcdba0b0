package tenantgate

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SecurityContextProvider resolves the caller's security bundle for one MCP
// tool call. Service deployments with a single tenant context can use a
// StaticSecurityContext.
type SecurityContextProvider func(ctx context.Context) (SecurityContext, error)

// StaticSecurityContext returns a provider that always yields sctx.
func StaticSecurityContext(sctx SecurityContext) SecurityContextProvider {
	return func(ctx context.Context) (SecurityContext, error) {
		return sctx, nil
	}
}

// RegisterMCPTools registers exec_query, show_tables, and show_columns as
// MCP tools on the given MCP server. Every call resolves its security
// context through provider; nothing is cached between calls.
func RegisterMCPTools(mcpServer *server.MCPServer, g *Gateway, provider SecurityContextProvider) {
	// exec_query tool
	queryTool := mcp.NewTool("exec_query",
		mcp.WithDescription("Execute a SELECT statement against the ERP database. Every referenced table needs an alias; tenant row filters are injected automatically. Returns the executed SQL, columns, and string-coerced rows as JSON."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SELECT statement to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(queryTool, g.loggedToolHandler("exec_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		sctx, err := provider(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		output := g.ExecQuery(ctx, sctx, QueryInput{SQL: sql})
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal query result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// show_tables tool
	showTablesTool := mcp.NewTool("show_tables",
		mcp.WithDescription("List the tables accessible to the current caller with their DB name, logical name, and description."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(showTablesTool, g.loggedToolHandler("show_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sctx, err := provider(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		output, err := g.ShowTables(ctx, sctx)
		if err != nil {
			return mcp.NewToolResultError(g.renderError(err)), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal show tables result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// show_columns tool
	showColumnsTool := mcp.NewTool("show_columns",
		mcp.WithDescription("List the columns of one accessible table with their catalog name, SQL type, and description. The table matches by DB or logical name, case-insensitively."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table to list, by DB or logical name"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(showColumnsTool, g.loggedToolHandler("show_columns", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		sctx, err := provider(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		output, err := g.ShowColumns(ctx, sctx, ShowColumnsInput{Table: table})
		if err != nil {
			return mcp.NewToolResultError(g.renderError(err)), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal show columns result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (g *Gateway) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		g.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
