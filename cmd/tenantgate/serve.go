package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rickchristie/tenantgate"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func runServe() error {
	ctx := context.Background()

	// 1. Load ServerConfig
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverConfig.Server.Port <= 0 {
		panic("tenantgate: server.port must be > 0")
	}

	// 2. Resolve connection string
	connString := os.Getenv("TENANTGATE_PG_CONNSTRING")
	if connString == "" {
		username := promptInput("Username: ")
		password := promptPassword("Password: ")
		connString = buildConnString(serverConfig.Connection, username, password)
	}

	// 3. Setup logger
	logger := setupLogger(serverConfig.Logging)

	// 4. Create Gateway instance
	gateway, err := tenantgate.New(ctx, connString, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer gateway.Close(ctx)

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := gateway.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	sctx := tenantgate.SecurityContext{
		AccessibleTableIDs: serverConfig.Security.AccessibleTableIDs,
		ReadableClients:    serverConfig.Security.ReadableClients,
		ReadableOrgs:       serverConfig.Security.ReadableOrgs,
	}

	// 6. Webhook routes
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	webhookPath := serverConfig.Server.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhooks"
	}
	webhookPath = strings.TrimSuffix(webhookPath, "/")

	webhooks := gateway.Webhooks()
	mux.HandleFunc(webhookPath+"/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, webhookPath+"/")
		handler, ok := webhooks[name]
		if !ok {
			http.Error(w, `{"error":"unknown webhook"}`, http.StatusNotFound)
			return
		}
		params, err := decodeParams(r.Body)
		if err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		response := handler(r.Context(), sctx, params)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("tenantgate: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// 7. Optional MCP endpoint sharing the same http.Server
	if serverConfig.Server.MCPEnabled {
		hooks := &server.Hooks{}
		hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
			logger.Info().
				Str("client_name", req.Params.ClientInfo.Name).
				Str("client_version", req.Params.ClientInfo.Version).
				Msg("AI agent connected (MCP initialize)")
		})

		mcpServer := server.NewMCPServer("tenantgate", "1.0.0",
			server.WithToolCapabilities(true),
			server.WithHooks(hooks),
		)

		tenantgate.RegisterMCPTools(mcpServer, gateway, tenantgate.StaticSecurityContext(sctx))

		streamableServer := server.NewStreamableHTTPServer(mcpServer,
			server.WithEndpointPath("/mcp"),
			server.WithStateLess(true),
			server.WithStreamableHTTPServer(httpSrv),
		)

		// Manually register the MCP handler — Start() does NOT register
		// when a custom *http.Server is provided via WithStreamableHTTPServer.
		mux.Handle("/mcp", streamableServer)

		logger.Info().Int("port", serverConfig.Server.Port).Msg("starting tenantgate server with MCP endpoint")
		return streamableServer.Start(addr)
	}

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting tenantgate server")
	return httpSrv.ListenAndServe()
}

// decodeParams reads a flat JSON object into string parameters. Non-string
// values are kept as their JSON encoding, so booleans and numbers arrive as
// "true" or "30".
func decodeParams(body io.Reader) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if err == io.EOF {
			return map[string]string{}, nil
		}
		return nil, err
	}
	params := make(map[string]string, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			params[key] = s
			continue
		}
		params[key] = string(value)
	}
	return params, nil
}

func loadServerConfig() (*tenantgate.ServerConfig, error) {
	configPath := os.Getenv("TENANTGATE_CONFIG_PATH")
	if configPath == "" {
		configPath = ".tenantgate/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config tenantgate.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func buildConnString(conn tenantgate.ConnectionConfig, username, password string) string {
	parts := []string{}
	if conn.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", conn.Host))
	}
	if conn.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", conn.Port))
	}
	if conn.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", conn.DBName))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	if conn.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", conn.SSLMode))
	}
	return strings.Join(parts, " ")
}

func setupLogger(config tenantgate.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
