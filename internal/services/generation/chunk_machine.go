package generation

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/models"
)

// ChunkOps are the side effects the chunk machine drives for one chunk
type ChunkOps interface {
	// Generate produces a fresh draft. mustCover lists key points an earlier draft omitted.
	Generate(ctx context.Context, attempt int, mustCover []string) (string, error)
	// Expand lengthens text toward target words
	Expand(ctx context.Context, text string, target int, tier int) (string, error)
	CheckOutline(text string) []models.OutlineIssue
	CheckBoundaries(text string) []models.BoundaryViolation
}

// TransitionFunc observes every state the machine enters
type TransitionFunc func(index int, state models.ChunkState, wordCount int)

// ChunkPolicy holds the length thresholds for one chunk
type ChunkPolicy struct {
	MinWords         int
	MaxRetries       int // total generation attempts; values below 1 mean one attempt
	Tier1            float64
	Tier2            float64
	RegenerateBelow  float64
	AcceptExpanded   float64
	AcceptUnexpanded float64
}

// NewChunkPolicy builds a policy for minWords from the generation config
func NewChunkPolicy(cfg *common.GenerationConfig, minWords int) ChunkPolicy {
	return ChunkPolicy{
		MinWords:         minWords,
		MaxRetries:       cfg.MaxRetries,
		Tier1:            cfg.ExpansionTier1,
		Tier2:            cfg.ExpansionTier2,
		RegenerateBelow:  cfg.RegenerateBelow,
		AcceptExpanded:   cfg.AcceptExpanded,
		AcceptUnexpanded: cfg.AcceptUnexpanded,
	}
}

type candidate struct {
	text       string
	words      int
	expansions []models.ExpansionAttempt
}

// ChunkMachine resolves one chunk to ACCEPTED or REJECTED.
//
//	GENERATED -> ACCEPTED               words >= min
//	GENERATED -> EXPANDING_TIER1        words < min
//	EXPANDING_TIER1 -> EXPANDING_TIER2  still short
//	EXPANDING_* -> ACCEPTED             ratio >= regenerate_below
//	EXPANDING_* -> REGENERATING         short and retries remain
//	EXPANDING_* -> ACCEPTED|REJECTED    retries exhausted, best candidate vs acceptance floor
//	REGENERATING -> GENERATED
//
// MaxRetries caps the drafts generated for length, the first one included. A critical
// outline miss on an otherwise acceptable draft earns one extra regeneration that does
// not count against it.
type ChunkMachine struct {
	policy       ChunkPolicy
	ops          ChunkOps
	logger       arbor.ILogger
	onTransition TransitionFunc
}

// NewChunkMachine creates a machine for one chunk. onTransition may be nil.
func NewChunkMachine(policy ChunkPolicy, ops ChunkOps, logger arbor.ILogger, onTransition TransitionFunc) *ChunkMachine {
	return &ChunkMachine{policy: policy, ops: ops, logger: logger, onTransition: onTransition}
}

// Run drives the machine until a terminal state. Rejection returns the result together with a quality error.
func (m *ChunkMachine) Run(ctx context.Context, index int) (*models.ChunkResult, error) {
	result := &models.ChunkResult{Index: index, MinWords: m.policy.MinWords}

	var best *candidate
	var mustCover []string
	regenerations := 0
	outlineRetryUsed := false
	outlineRetry := false

	for {
		if err := ctx.Err(); err != nil {
			return result, TimeoutError(fmt.Sprintf("chunk %d generation", index), err)
		}

		text, err := m.ops.Generate(ctx, result.Attempts, mustCover)
		result.Attempts++
		if err != nil {
			return result, err
		}

		cand := &candidate{text: text, words: CountWords(text)}
		m.enter(result, models.ChunkGenerated, cand.words)

		if cand.words < m.policy.MinWords {
			if err := m.expand(ctx, result, cand, models.ChunkExpandingTier1, 1, m.policy.Tier1); err != nil {
				return result, err
			}
			if cand.words < m.policy.MinWords {
				if err := m.expand(ctx, result, cand, models.ChunkExpandingTier2, 2, m.policy.Tier2); err != nil {
					return result, err
				}
			}
		}

		switch {
		case best == nil || cand.words > best.words:
			best = cand
		case outlineRetry && m.ratio(cand.words) >= m.policy.RegenerateBelow:
			// the outline retry exists to restore coverage, so a long enough draft wins over a longer one
			best = cand
		}
		outlineRetry = false

		if m.ratio(best.words) >= m.policy.RegenerateBelow {
			if !outlineRetryUsed {
				if missing := CriticalIssues(m.ops.CheckOutline(best.text)); len(missing) > 0 {
					outlineRetryUsed = true
					outlineRetry = true
					mustCover = missing
					m.logger.Debug().
						Int("chunk", index).
						Strs("missing", missing).
						Msg("Chunk missed outline key points, regenerating")
					m.enter(result, models.ChunkRegenerating, best.words)
					continue
				}
			}
			return m.finish(result, best, models.ChunkAccepted), nil
		}

		if regenerations+1 < m.policy.MaxRetries {
			regenerations++
			m.logger.Debug().
				Int("chunk", index).
				Int("words", best.words).
				Int("min_words", m.policy.MinWords).
				Int("regeneration", regenerations).
				Msg("Chunk short after expansion, regenerating")
			m.enter(result, models.ChunkRegenerating, cand.words)
			continue
		}

		floor := m.policy.AcceptUnexpanded
		if len(best.expansions) > 0 {
			floor = m.policy.AcceptExpanded
		}
		if m.ratio(best.words) >= floor {
			return m.finish(result, best, models.ChunkAccepted), nil
		}

		m.finish(result, best, models.ChunkRejected)
		shortfall := (1 - m.ratio(best.words)) * 100
		return result, QualityError("chunk_word_count",
			fmt.Sprintf("chunk %d is %.1f%% short of its minimum length", index, shortfall),
			fmt.Sprintf("%d of %d words after %d attempts", best.words, m.policy.MinWords, result.Attempts))
	}
}

func (m *ChunkMachine) expand(ctx context.Context, result *models.ChunkResult, cand *candidate, state models.ChunkState, tier int, factor float64) error {
	if err := ctx.Err(); err != nil {
		return TimeoutError(fmt.Sprintf("chunk %d expansion", result.Index), err)
	}
	m.enter(result, state, cand.words)

	target := ceilMul(m.policy.MinWords, factor)
	expanded, err := m.ops.Expand(ctx, cand.text, target, tier)
	if err != nil {
		return err
	}

	attempt := models.ExpansionAttempt{Tier: tier, TargetWords: target, Before: cand.words}
	after := CountWords(expanded)
	if after <= cand.words {
		attempt.Declined = true
		attempt.After = cand.words
	} else {
		attempt.After = after
		cand.text = expanded
		cand.words = after
	}
	cand.expansions = append(cand.expansions, attempt)
	return nil
}

func (m *ChunkMachine) finish(result *models.ChunkResult, best *candidate, state models.ChunkState) *models.ChunkResult {
	result.Text = best.text
	result.WordCount = best.words
	result.Expansions = best.expansions
	result.Accepted = state == models.ChunkAccepted
	result.OutlineIssues = m.ops.CheckOutline(best.text)
	result.BoundaryViolations = m.ops.CheckBoundaries(best.text)
	m.enter(result, state, best.words)
	return result
}

func (m *ChunkMachine) enter(result *models.ChunkResult, state models.ChunkState, words int) {
	result.FinalState = state
	result.Transitions = append(result.Transitions, state)
	if m.onTransition != nil {
		m.onTransition(result.Index, state, words)
	}
}

func (m *ChunkMachine) ratio(words int) float64 {
	if m.policy.MinWords <= 0 {
		return 1
	}
	return float64(words) / float64(m.policy.MinWords)
}
