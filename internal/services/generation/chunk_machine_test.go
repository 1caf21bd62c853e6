package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/models"
)

// scriptedOps replays drafts and expansions in order. A missing expansion returns the input unchanged.
type scriptedOps struct {
	drafts     []string
	expansions []string
	outline    func(text string) []models.OutlineIssue

	generateCalls int
	expandCalls   int
	mustCover     [][]string
	targets       []int
}

func (o *scriptedOps) Generate(ctx context.Context, attempt int, mustCover []string) (string, error) {
	o.mustCover = append(o.mustCover, mustCover)
	i := o.generateCalls
	if i >= len(o.drafts) {
		i = len(o.drafts) - 1
	}
	o.generateCalls++
	return o.drafts[i], nil
}

func (o *scriptedOps) Expand(ctx context.Context, text string, target int, tier int) (string, error) {
	o.targets = append(o.targets, target)
	i := o.expandCalls
	o.expandCalls++
	if i < len(o.expansions) && o.expansions[i] != "" {
		return o.expansions[i], nil
	}
	return text, nil
}

func (o *scriptedOps) CheckOutline(text string) []models.OutlineIssue {
	if o.outline == nil {
		return nil
	}
	return o.outline(text)
}

func (o *scriptedOps) CheckBoundaries(text string) []models.BoundaryViolation {
	return nil
}

func policy(minWords, maxRetries int) ChunkPolicy {
	cfg := testConfig()
	p := NewChunkPolicy(&cfg.Generation, minWords)
	p.MaxRetries = maxRetries
	return p
}

func runMachine(t *testing.T, p ChunkPolicy, ops *scriptedOps) (*models.ChunkResult, error) {
	t.Helper()
	var seen []models.ChunkState
	machine := NewChunkMachine(p, ops, arbor.NewLogger(), func(index int, state models.ChunkState, wordCount int) {
		seen = append(seen, state)
	})
	result, err := machine.Run(context.Background(), 1)
	require.NotNil(t, result)
	assert.Equal(t, result.Transitions, seen)
	return result, err
}

func TestChunkMachine_AcceptsAtMinimum(t *testing.T) {
	ops := &scriptedOps{drafts: []string{words(100)}}
	result, err := runMachine(t, policy(100, 3), ops)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 100, result.WordCount)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, result.Expansions)
	assert.Equal(t, []models.ChunkState{models.ChunkGenerated, models.ChunkAccepted}, result.Transitions)
	assert.Equal(t, 0, ops.expandCalls)
}

func TestChunkMachine_Tier1ExpansionReachesMinimum(t *testing.T) {
	ops := &scriptedOps{drafts: []string{words(80)}, expansions: []string{words(110)}}
	result, err := runMachine(t, policy(100, 3), ops)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 110, result.WordCount)
	require.Len(t, result.Expansions, 1)
	assert.Equal(t, 1, result.Expansions[0].Tier)
	assert.Equal(t, 120, result.Expansions[0].TargetWords)
	assert.Equal(t, []models.ChunkState{models.ChunkGenerated, models.ChunkExpandingTier1, models.ChunkAccepted}, result.Transitions)
}

func TestChunkMachine_Tier2Targets(t *testing.T) {
	ops := &scriptedOps{drafts: []string{words(50)}, expansions: []string{words(60), words(90)}}
	result, err := runMachine(t, policy(100, 1), ops)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, []int{120, 150}, ops.targets)
	assert.Equal(t, []models.ChunkState{
		models.ChunkGenerated, models.ChunkExpandingTier1, models.ChunkExpandingTier2, models.ChunkAccepted,
	}, result.Transitions)
}

func TestChunkMachine_ExpandedAcceptanceFloor(t *testing.T) {
	const minWords = 1925

	t.Run("72 percent after expansion is accepted", func(t *testing.T) {
		ops := &scriptedOps{drafts: []string{words(1000)}, expansions: []string{words(1386)}}
		result, err := runMachine(t, policy(minWords, 1), ops)

		require.NoError(t, err)
		assert.True(t, result.Accepted)
		assert.Equal(t, models.ChunkAccepted, result.FinalState)
		assert.Equal(t, 1386, result.WordCount)
		require.Len(t, result.Expansions, 2)
		assert.False(t, result.Expansions[0].Declined)
		assert.True(t, result.Expansions[1].Declined, "unchanged text counts as a declined expansion")
	})

	t.Run("68 percent after expansion is rejected", func(t *testing.T) {
		ops := &scriptedOps{drafts: []string{words(1000)}, expansions: []string{words(1309)}}
		result, err := runMachine(t, policy(minWords, 1), ops)

		require.Error(t, err)
		assert.False(t, result.Accepted)
		assert.Equal(t, models.ChunkRejected, result.FinalState)

		ge, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindQuality, ge.Kind)
		assert.True(t, ge.Retry)
		assert.Equal(t, "chunk_word_count", ge.Check)
		assert.Contains(t, ge.Message, "chunk 1")
		assert.Contains(t, ge.Message, "32.0%")
	})

	t.Run("68 percent regenerates while retries remain", func(t *testing.T) {
		ops := &scriptedOps{
			drafts:     []string{words(1000), words(1925)},
			expansions: []string{words(1309)},
		}
		result, err := runMachine(t, policy(minWords, 2), ops)

		require.NoError(t, err)
		assert.True(t, result.Accepted)
		assert.Equal(t, 2, result.Attempts)
		assert.Equal(t, 1925, result.WordCount)
		assert.Contains(t, result.Transitions, models.ChunkRegenerating)
		assert.Empty(t, result.Expansions, "expansions belong to the discarded draft")
	})
}

func TestChunkMachine_MaxRetriesCapsTotalAttempts(t *testing.T) {
	cfg := testConfig()
	ops := &scriptedOps{drafts: []string{words(10)}}
	result, err := runMachine(t, NewChunkPolicy(&cfg.Generation, 100), ops)

	require.Error(t, err)
	assert.Equal(t, cfg.Generation.MaxRetries, ops.generateCalls)
	assert.Equal(t, cfg.Generation.MaxRetries, result.Attempts)
	assert.Equal(t, 2*cfg.Generation.MaxRetries, ops.expandCalls)
	assert.Equal(t, models.ChunkRejected, result.FinalState)
}

func TestChunkMachine_NonPositiveMaxRetriesIsOneAttempt(t *testing.T) {
	ops := &scriptedOps{drafts: []string{words(10)}}
	_, err := runMachine(t, policy(100, 0), ops)

	require.Error(t, err)
	assert.Equal(t, 1, ops.generateCalls)
}

func TestChunkMachine_KeepsBestCandidate(t *testing.T) {
	ops := &scriptedOps{
		drafts:     []string{words(60), words(40)},
		expansions: []string{words(78), "", words(50), ""},
	}
	result, err := runMachine(t, policy(100, 2), ops)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 78, result.WordCount)
	assert.Equal(t, 2, result.Attempts)
}

func TestChunkMachine_ShorterExpansionIsDeclined(t *testing.T) {
	ops := &scriptedOps{drafts: []string{words(90)}, expansions: []string{words(70), words(100)}}
	result, err := runMachine(t, policy(100, 1), ops)

	require.NoError(t, err)
	assert.Equal(t, 100, result.WordCount)
	require.Len(t, result.Expansions, 2)
	assert.True(t, result.Expansions[0].Declined)
	assert.Equal(t, 90, result.Expansions[0].After)
	assert.Equal(t, 90, result.Expansions[1].Before)
}

func TestChunkMachine_OutlineMissRegeneratesOnce(t *testing.T) {
	first := words(100)
	second := words(100) + " apollo guidance computer"
	ops := &scriptedOps{
		drafts: []string{first, second},
		outline: func(text string) []models.OutlineIssue {
			if text == first {
				return []models.OutlineIssue{{Missing: "Apollo guidance computer", Critical: true}}
			}
			return nil
		},
	}
	result, err := runMachine(t, policy(100, 1), ops)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 2, result.Attempts, "outline retry does not use the regeneration budget")
	assert.Equal(t, second, result.Text)
	require.Len(t, ops.mustCover, 2)
	assert.Nil(t, ops.mustCover[0])
	assert.Equal(t, []string{"Apollo guidance computer"}, ops.mustCover[1])
	assert.Empty(t, result.OutlineIssues)
}

func TestChunkMachine_OutlineMissPersistsAfterRetry(t *testing.T) {
	ops := &scriptedOps{
		drafts: []string{words(100)},
		outline: func(text string) []models.OutlineIssue {
			return []models.OutlineIssue{{Missing: "Launch window", Critical: true}}
		},
	}
	result, err := runMachine(t, policy(100, 1), ops)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 2, ops.generateCalls)
	require.Len(t, result.OutlineIssues, 1)
	assert.True(t, result.OutlineIssues[0].Critical)
}

func TestChunkMachine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ops := &scriptedOps{drafts: []string{words(100)}}
	machine := NewChunkMachine(policy(100, 3), ops, arbor.NewLogger(), nil)
	_, err := machine.Run(ctx, 0)

	require.Error(t, err)
	ge, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, ge.Kind)
	assert.True(t, ge.Retry)
	assert.Equal(t, 0, ops.generateCalls)
}
