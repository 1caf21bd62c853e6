package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/longform/internal/common"
)

// RetryConfig defines transport retry behaviour for LLM calls
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// InitialBackoff is the wait before the first retry (default: 2s)
	InitialBackoff time.Duration

	// MaxBackoff caps the computed exponential backoff (default: 30s)
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to backoff on each retry (default: 2)
	BackoffMultiplier float64
}

const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 2 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// NewRetryConfig builds a RetryConfig from the llm config section
func NewRetryConfig(cfg *common.LLMConfig) *RetryConfig {
	rc := &RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
	if cfg == nil {
		return rc
	}
	if cfg.MaxRetries >= 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	rc.InitialBackoff = common.ParseDurationOr(cfg.InitialBackoff, DefaultInitialBackoff)
	rc.MaxBackoff = common.ParseDurationOr(cfg.MaxBackoff, DefaultMaxBackoff)
	return rc
}

// CalculateBackoff computes the wait before retry number attempt (0-based).
// An API-suggested delay larger than the computed backoff wins, even past MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.InitialBackoff) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	if apiDelay > backoff {
		return apiDelay
	}
	return backoff
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(errStr), "rate_limit") ||
		strings.Contains(strings.ToLower(errStr), "quota")
}

// authMarkers are substrings of provider errors caused by bad or unauthorized credentials
var authMarkers = []string{
	"401", "403", "UNAUTHENTICATED", "PERMISSION_DENIED", "API_KEY_INVALID",
	"authentication_error", "permission_error", "invalid x-api-key", "API key not valid",
}

// IsAuthError reports whether a provider rejected the call's credentials
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, marker := range authMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// IsTransientError reports whether a failed call should be retried. Every provider
// failure is retried except missing or rejected credentials and caller cancellation.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, context.Canceled) {
		return false
	}
	return !IsAuthError(err)
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s"]+|retry-after[:\s]+)(\d+(?:\.\d+)?)\s*s?`)

// ExtractRetryDelay parses an API-suggested retry delay from an error message.
// Returns 0 if no delay is found.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}
