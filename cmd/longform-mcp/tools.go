package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createEstimateCreditsTool returns the estimate_credits tool definition
func createEstimateCreditsTool() mcp.Tool {
	return mcp.NewTool("estimate_credits",
		mcp.WithDescription("Price a script generation by duration and model tier without running it"),
		mcp.WithNumber("duration_seconds",
			mcp.Required(),
			mcp.Description("Target narration length in seconds"),
		),
		mcp.WithString("model_tier",
			mcp.Description("fast, balanced (default) or premium"),
		),
	)
}

// createGenerateScriptTool returns the generate_script tool definition
func createGenerateScriptTool() mcp.Tool {
	return mcp.NewTool("generate_script",
		mcp.WithDescription("Generate a narrated script from a content brief. Debits credits only when the script passes the completeness gate."),
		mcp.WithString("brief",
			mcp.Required(),
			mcp.Description("Content brief as JSON (user_id, topic, duration_seconds, model_tier, content_points, sources, ...)"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key; repeating it never bills twice"),
		),
	)
}

// createGetScriptTool returns the get_script tool definition
func createGetScriptTool() mcp.Tool {
	return mcp.NewTool("get_script",
		mcp.WithDescription("Retrieve a persisted script by ID"),
		mcp.WithString("script_id",
			mcp.Required(),
			mcp.Description("Script ID returned by generate_script"),
		),
	)
}
