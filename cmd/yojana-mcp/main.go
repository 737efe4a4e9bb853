package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/yojana/internal/app"
	"github.com/ternarybob/yojana/internal/common"
)

func main() {
	configPath := os.Getenv("YOJANA_CONFIG")
	if configPath == "" {
		configPath = "yojana.toml"
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The HTTP server owns background sweeps and event streaming
	config.Reconcile.Enabled = false
	config.WebSocket.Enabled = false

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"yojana",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAskSchemeQuestionTool(), handleAskSchemeQuestion(application.Pipeline, logger))
	mcpServer.AddTool(createSearchSchemesTool(), handleSearchSchemes(application.Pipeline, logger))
	mcpServer.AddTool(createGetDocumentTool(), handleGetDocument(application.IngestionService, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}
