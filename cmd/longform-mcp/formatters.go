package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/generation"
)

// formatEstimate renders a credit estimate as markdown
func formatEstimate(duration int, cost models.CreditCost) string {
	var sb strings.Builder
	sb.WriteString("# Credit Estimate\n\n")
	sb.WriteString(fmt.Sprintf("- **Duration:** %ds (%d min)\n", duration, cost.Minutes))
	sb.WriteString(fmt.Sprintf("- **Tier:** %s (x%.2f)\n", cost.Tier, cost.Multiplier))
	if cost.Chunked {
		sb.WriteString(fmt.Sprintf("- **Chunked:** yes (overhead x%.2f)\n", cost.Overhead))
	} else {
		sb.WriteString("- **Chunked:** no\n")
	}
	sb.WriteString(fmt.Sprintf("- **Credits:** %d\n", cost.Credits))
	return sb.String()
}

// formatResult renders a successful generation with a metadata header
func formatResult(result *generation.Result) string {
	var sb strings.Builder
	scriptID := "not persisted"
	if result.ScriptID != nil {
		scriptID = *result.ScriptID
	}
	sb.WriteString(fmt.Sprintf("<!-- script_id: %s | request_id: %s | words: %d | credits: %d -->\n\n",
		scriptID, result.RequestID, result.WordCount, result.CreditsUsed))
	sb.WriteString(result.Script)
	return sb.String()
}

// formatScript renders a stored script
func formatScript(record *models.ScriptRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", record.Topic))
	sb.WriteString(fmt.Sprintf("**ID:** %s | **Words:** %d | **Credits:** %d | **Created:** %s\n\n",
		record.ID, record.WordCount, record.CreditsUsed, record.CreatedAt.Format("2006-01-02 15:04")))
	sb.WriteString("---\n\n")
	sb.WriteString(record.Script)
	return sb.String()
}

// formatError renders the caller error contract as text
func formatError(err error) string {
	ge := generation.Classify(err)
	msg := fmt.Sprintf("Error (%s, status %d): %s", ge.Kind, ge.Status, ge.Message)
	if ge.Check != "" {
		msg += fmt.Sprintf("\nCheck: %s", ge.Check)
	}
	if ge.Details != "" {
		msg += fmt.Sprintf("\nDetails: %s", ge.Details)
	}
	if ge.Retry {
		msg += "\nRetry: yes"
	} else {
		msg += "\nRetry: no"
	}
	return msg
}
