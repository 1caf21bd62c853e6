package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/longform/internal/common"
)

func TestCalculateBackoff_ExponentialWithCap(t *testing.T) {
	rc := NewRetryConfig(&common.LLMConfig{MaxRetries: 3, InitialBackoff: "2s", MaxBackoff: "30s"})

	tests := []struct {
		attempt  int
		apiDelay time.Duration
		want     time.Duration
	}{
		{0, 0, 2 * time.Second},
		{1, 0, 4 * time.Second},
		{2, 0, 8 * time.Second},
		{4, 0, 30 * time.Second},
		{0, 45 * time.Second, 45 * time.Second},
		{3, time.Second, 16 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d_api_%s", tt.attempt, tt.apiDelay), func(t *testing.T) {
			assert.Equal(t, tt.want, rc.CalculateBackoff(tt.attempt, tt.apiDelay))
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing credentials", fmt.Errorf("%w: claude", ErrMissingCredentials), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"rate limit", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), true},
		{"overloaded", errors.New(`529 {"type":"overloaded_error"}`), true},
		{"server error", errors.New("POST /v1/messages: 503 Service Unavailable"), true},
		{"bad request", errors.New("400 invalid_request_error: max_tokens too large"), true},
		{"unknown failure", errors.New("unexpected end of JSON input"), true},
		{"unauthorized", errors.New(`401 {"type":"authentication_error","message":"invalid x-api-key"}`), false},
		{"gemini bad key", errors.New("Error 400, Message: API key not valid. Please pass a valid API key., Status: INVALID_ARGUMENT"), false},
		{"forbidden", errors.New("Error 403, Status: PERMISSION_DENIED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("boom")))
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSONResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSONResponse("Here is the outline:\n{\"a\":1}\nThanks"))
	assert.Equal(t, `[1,2]`, CleanJSONResponse("[1,2]"))
}

func TestDetectProvider(t *testing.T) {
	f := NewProviderFactory(&common.GeminiConfig{}, &common.ClaudeConfig{}, &common.LLMConfig{DefaultProvider: common.LLMProviderClaude}, nil, nil)

	assert.Equal(t, ProviderClaude, f.DetectProvider("claude-sonnet-4-5"))
	assert.Equal(t, ProviderGemini, f.DetectProvider("gemini/gemini-2.5-flash"))
	assert.Equal(t, ProviderClaude, f.DetectProvider(""))
	assert.Equal(t, "gemini-2.5-flash", f.NormalizeModel("gemini/gemini-2.5-flash"))
}
