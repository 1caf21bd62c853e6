package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/generation"
)

// ScriptGenerator is the pipeline surface the tools use
type ScriptGenerator interface {
	Generate(ctx context.Context, req *generation.Request) (*generation.Result, error)
	Estimate(durationSeconds int, tier models.ModelTier) (models.CreditCost, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleEstimateCredits implements the estimate_credits tool
func handleEstimateCredits(generator ScriptGenerator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		duration := request.GetInt("duration_seconds", 0)
		if duration <= 0 {
			return errorResult("Error: duration_seconds must be greater than 0"), nil
		}
		tier := models.ModelTier(request.GetString("model_tier", string(models.TierBalanced)))

		cost, err := generator.Estimate(duration, tier)
		if err != nil {
			return errorResult(formatError(err)), nil
		}
		return textResult(formatEstimate(duration, cost)), nil
	}
}

// handleGenerateScript implements the generate_script tool
func handleGenerateScript(generator ScriptGenerator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := request.RequireString("brief")
		if err != nil || raw == "" {
			return errorResult("Error: brief parameter is required"), nil
		}

		var brief models.ContentBrief
		if err := json.Unmarshal([]byte(raw), &brief); err != nil {
			return errorResult(fmt.Sprintf("Error: brief is not valid JSON: %v", err)), nil
		}

		result, err := generator.Generate(ctx, &generation.Request{
			Brief:     brief,
			RequestID: request.GetString("request_id", ""),
		})
		if err != nil {
			logger.Warn().Err(err).Str("topic", brief.Topic).Msg("generate_script failed")
			return errorResult(formatError(err)), nil
		}

		return textResult(formatResult(result)), nil
	}
}

// handleGetScript implements the get_script tool
func handleGetScript(scripts interfaces.ScriptStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scriptID, err := request.RequireString("script_id")
		if err != nil || scriptID == "" {
			return errorResult("Error: script_id parameter is required"), nil
		}

		record, err := scripts.GetScript(ctx, scriptID)
		if err != nil {
			logger.Debug().Err(err).Str("script_id", scriptID).Msg("GetScript failed")
			return errorResult(fmt.Sprintf("Script not found: %v", err)), nil
		}

		return textResult(formatScript(record)), nil
	}
}
