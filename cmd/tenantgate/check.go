package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/rickchristie/tenantgate"

	"github.com/jackc/pgx/v5"
	"golang.org/x/term"
)

const catalogProbeSQL = `
SELECT
  to_regclass('ad_table') IS NOT NULL,
  to_regclass('ad_column') IS NOT NULL;
`

func runCheck() error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", ".tenantgate/config.json", "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return check(os.Stderr, useColor, *configPath)
}

func check(w io.Writer, useColor bool, configPath string) error {
	fmt.Fprintf(w, "tenantgate configuration check\n\n")

	config, ok := checkValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'tenantgate check' again.")
		return nil
	}

	fmt.Fprintln(w)
	checkDatabase(w, useColor, config)
	return nil
}

// checkValidateConfig loads and validates the config file, printing check
// results. Returns the parsed config and true if all checks passed.
func checkValidateConfig(w io.Writer, useColor bool, configPath string) (*tenantgate.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file exists and is valid JSON
	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config tenantgate.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	// Check 2: connection.dbname is set
	if config.Connection.DBName == "" {
		printCheck(w, useColor, false, "connection.dbname is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	// Check 3: server.port > 0
	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	// Check 4: Health check path set when enabled
	if config.Server.HealthCheckEnabled {
		if config.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	// Check 5: Security context is populated
	if len(config.Security.AccessibleTableIDs) == 0 {
		printCheck(w, useColor, false, "security.accessible_table_ids is non-empty (every query would be rejected)")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("security.accessible_table_ids is non-empty (%d tables)", len(config.Security.AccessibleTableIDs)))
	}
	if len(config.Security.ReadableClients) == 0 || len(config.Security.ReadableOrgs) == 0 {
		printCheck(w, useColor, false, "security.readable_clients and security.readable_orgs are non-empty (every query would return zero rows)")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("security context has %d clients, %d orgs", len(config.Security.ReadableClients), len(config.Security.ReadableOrgs)))
	}

	// Check 6: Regex patterns compile
	regexOK := true

	for i, rule := range config.Hints {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("hints[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return &config, allPassed
}

// checkDatabase connects using TENANTGATE_PG_CONNSTRING and probes for the
// catalog tables. Skipped when the environment variable is unset.
func checkDatabase(w io.Writer, useColor bool, config *tenantgate.ServerConfig) {
	connString := os.Getenv("TENANTGATE_PG_CONNSTRING")
	if connString == "" {
		fmt.Fprintln(w, "TENANTGATE_PG_CONNSTRING is not set; skipping database checks.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database connection: %v", err))
		return
	}
	defer conn.Close(ctx)
	printCheck(w, useColor, true, "Database connection")

	var hasTable, hasColumn bool
	if err := conn.QueryRow(ctx, catalogProbeSQL).Scan(&hasTable, &hasColumn); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Catalog table probe: %v", err))
		return
	}
	printCheck(w, useColor, hasTable, "ad_table exists")
	printCheck(w, useColor, hasColumn, "ad_column exists")
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
