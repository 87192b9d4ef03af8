package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	pgmux "github.com/pmorrell/pgmux"

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

	// 2. Setup logger
	logger := setupLogger(serverConfig.Logging)

	if isTTY(os.Stderr.Fd()) {
		printBanner(os.Stderr, true)
	}

	// 3. Create the engine
	p := pgmux.New(serverConfig.Config, logger)
	defer p.Close()

	// 4. Register seed connections from config
	if err := registerSeeds(ctx, p, serverConfig.Seeds, logger); err != nil {
		return err
	}

	// 5. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgmux", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	pgmux.RegisterMCPTools(mcpServer, p)

	// 6. Serve on the configured transport
	switch strings.ToLower(serverConfig.Server.Transport) {
	case "", "stdio":
		logger.Info().Msg("starting pgmux server on stdio")
		return server.ServeStdio(mcpServer)
	case "http":
		return serveHTTP(mcpServer, serverConfig, logger)
	default:
		return fmt.Errorf("unknown transport %q (expected \"stdio\" or \"http\")", serverConfig.Server.Transport)
	}
}

func serveHTTP(mcpServer *server.MCPServer, serverConfig *pgmux.ServerConfig, logger zerolog.Logger) error {
	if serverConfig.Server.Port <= 0 {
		return errors.New("server.port must be > 0 for the http transport")
	}

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		path := serverConfig.Server.HealthCheckPath
		if path == "" {
			path = "/healthz"
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Start() does not register the MCP handler when a custom
	// *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgmux server on http")
	return streamableServer.Start(addr)
}

// registerSeeds registers the configured seed connections, prompting for
// credentials when a seed's connection string omits them.
func registerSeeds(ctx context.Context, p *pgmux.PgMux, seeds []pgmux.SeedConfig, logger zerolog.Logger) error {
	for _, seed := range seeds {
		connStr := seed.ConnString
		if connStr == "" {
			name := seed.Name
			if name == "" {
				name = seed.DBName
			}
			username := promptInput(fmt.Sprintf("[%s] Username: ", name))
			password := promptPassword(fmt.Sprintf("[%s] Password: ", name))
			connStr = buildConnString(seed, username, password)
		}
		handle, err := p.Register(ctx, connStr)
		if err != nil {
			return fmt.Errorf("failed to register seed connection %q: %w", seed.Name, err)
		}
		logger.Info().Str("seed", seed.Name).Str("handle", handle).Msg("seed connection registered")
	}
	return nil
}

func loadServerConfig() (*pgmux.ServerConfig, error) {
	configPath := os.Getenv("PGMUX_CONFIG_PATH")
	explicit := configPath != ""
	if configPath == "" {
		configPath = ".pgmux/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		// With no explicit config the server runs on defaults: stdio
		// transport, empty registry, connections added via the register tool.
		if !explicit && os.IsNotExist(err) {
			return &pgmux.ServerConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config pgmux.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func buildConnString(seed pgmux.SeedConfig, username, password string) string {
	parts := []string{}
	if seed.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", seed.Host))
	}
	if seed.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", seed.Port))
	}
	if seed.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", seed.DBName))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	if seed.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", seed.SSLMode))
	}
	return strings.Join(parts, " ")
}

func setupLogger(config pgmux.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// stdout carries the MCP stdio framing, so logs default to stderr.
	var output io.Writer = os.Stderr
	if config.Output != "" && config.Output != "stderr" && config.Output != "stdout" {
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
