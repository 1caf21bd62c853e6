package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/services/llm"
)

// TextGenerator is the single-call LLM boundary
type TextGenerator interface {
	GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error)
}

// Executor issues LLM calls, retrying only transport failures with exponential backoff.
// Content quality retries live in the chunk state machine.
type Executor struct {
	generator TextGenerator
	retry     *llm.RetryConfig
	logger    arbor.ILogger
	sleep     func(ctx context.Context, d time.Duration) error
	calls     atomic.Int64
}

// NewExecutor creates an executor
func NewExecutor(generator TextGenerator, retry *llm.RetryConfig, logger arbor.ILogger) *Executor {
	return &Executor{
		generator: generator,
		retry:     retry,
		logger:    logger,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Calls returns the number of LLM calls issued, including retries
func (e *Executor) Calls() int {
	return int(e.calls.Load())
}

// Generate issues one logical call. Empty text is returned as an empty response, not an error.
func (e *Executor) Generate(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, TimeoutError("llm call", err)
		}

		e.calls.Add(1)
		resp, err := e.generator.GenerateContent(ctx, request)
		if err == nil {
			if resp == nil {
				resp = &llm.ContentResponse{}
			}
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, llm.ErrMissingCredentials) {
			return nil, ConfigError("LLM service credentials are not configured", err)
		}
		if ctx.Err() != nil {
			return nil, TimeoutError("llm call", err)
		}
		if !llm.IsTransientError(err) {
			return nil, ConfigError("LLM service rejected the credentials", err)
		}
		if attempt == e.retry.MaxRetries {
			break
		}

		backoff := e.retry.CalculateBackoff(attempt, llm.ExtractRetryDelay(err))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
			return nil, TimeoutError("llm retry backoff", err)
		}

		e.logger.Warn().
			Int("attempt", attempt+1).
			Str("backoff", backoff.String()).
			Bool("rate_limited", llm.IsRateLimitError(err)).
			Err(err).
			Msg("Retrying LLM call after transport failure")

		if err := e.sleep(ctx, backoff); err != nil {
			return nil, TimeoutError("llm retry backoff", err)
		}
	}

	return nil, TransientError("LLM service unavailable after retries", lastErr)
}
