// vizchat is a web backend that relays chat messages to an LLM analyst
// agent, executes the agent's tool calls against an MCP data server, and
// streams the agent's progress to the browser as server-sent events.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/internal/agent/providers"
	"github.com/vizlab-ai/vizchat/internal/chat"
	"github.com/vizlab-ai/vizchat/internal/config"
	"github.com/vizlab-ai/vizchat/internal/mcp"
	"github.com/vizlab-ai/vizchat/internal/observability"
	"github.com/vizlab-ai/vizchat/internal/sessions"
	"github.com/vizlab-ai/vizchat/internal/web"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.LogConfig{}).Error(context.Background(),
			"failed to load configuration", "error", err.Error())
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := sessions.NewMemoryStore()
	coordinator, mcpClient, err := buildAgent(ctx, cfg, store, logger, metrics)
	if err != nil {
		// The server still comes up so /healthz and the frontend work; the
		// chat endpoints report the failure until a restart fixes it.
		logger.Error(ctx, "agent initialization failed", "error", err.Error())
		coordinator = nil
	}
	if mcpClient != nil {
		defer func() {
			if err := mcpClient.Close(); err != nil {
				logger.Warn(ctx, "mcp client close failed", "error", err.Error())
			}
		}()
	}

	server := web.NewServer(coordinator, store, cfg.Server.StaticDir, logger, metrics)
	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     server.Router(),
		ReadTimeout: 30 * time.Second,
		// SSE responses stay open for the whole turn; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info(ctx, "server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "forced shutdown", "error", err.Error())
		return err
	}
	logger.Info(context.Background(), "server stopped")
	return nil
}

// buildAgent connects to the MCP server, wraps its tools with fault
// normalization, selects the LLM provider and assembles the chat
// coordinator.
func buildAgent(ctx context.Context, cfg *config.Config, store sessions.Store, logger *observability.Logger, metrics *observability.Metrics) (*chat.Coordinator, *mcp.Client, error) {
	mcpClient := mcp.NewClient(&mcp.ServerConfig{
		Name:      "vizchat",
		Transport: mcp.TransportType(cfg.MCP.Transport),
		URL:       cfg.MCP.URL,
		Command:   cfg.MCP.Command,
		Args:      cfg.MCP.Args,
	}, logger.Slog())

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mcpClient.Connect(connectCtx); err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "connected to MCP server",
		"server", mcpClient.ServerInfo().Name,
		"tools", len(mcpClient.Tools()))

	tools := agent.NormalizeTools(agent.MCPTools(mcpClient), logger, metrics)

	provider, err := providers.Select(cfg.Provider)
	if err != nil {
		return nil, mcpClient, err
	}
	logger.Info(ctx, "provider selected", "provider", provider.Name(), "model", cfg.Provider.Model)

	runtime := agent.NewRuntime(provider, tools, store, agent.RuntimeConfig{
		Model:         cfg.Provider.Model,
		SystemPrompt:  cfg.Provider.SystemPrompt,
		Temperature:   cfg.Provider.Temperature,
		MaxTokens:     cfg.Provider.MaxTokens,
		MaxIterations: cfg.Provider.MaxIterations,
	}, logger, metrics)

	repairer := sessions.NewRepairer(store, logger, metrics)
	return chat.NewCoordinator(runtime, repairer, logger, metrics), mcpClient, nil
}
