package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/longform/internal/app"
	"github.com/ternarybob/longform/internal/common"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("LONGFORM_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("longform.toml"); err == nil {
			configPath = "longform.toml"
		}
	}

	config, err := common.LoadFromFile(nil, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console logging so stdio stays clean for the MCP protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"longform",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createEstimateCreditsTool(), handleEstimateCredits(application.GenerationService))
	mcpServer.AddTool(createGenerateScriptTool(), handleGenerateScript(application.GenerationService, logger))
	mcpServer.AddTool(createGetScriptTool(), handleGetScript(application.StorageManager.ScriptStorage(), logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
