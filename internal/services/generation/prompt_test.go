package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/longform/internal/models"
)

func promptBrief() *models.ContentBrief {
	return &models.ContentBrief{
		Topic: "The Apollo program",
		Hook:  "Three men sat on top of the largest rocket ever built.",
		Voice: models.VoiceProfile{Name: "Ada", Style: "warm", Avoid: []string{"delve", "tapestry"}},
		ContentPoints: []models.ContentPoint{
			{Title: "Origins of the race", DurationSeconds: 600},
			{Title: "Saturn V", DurationSeconds: 600},
			{Title: "Lunar landing", DurationSeconds: 600, KeyTakeaway: "Precision beats bravado"},
		},
		Sponsor: &models.SponsorSegment{Name: "Orbit Coffee", Message: "Fuel for long nights", AfterPoint: 1},
	}
}

func TestPromptBuilder_SystemPrompt(t *testing.T) {
	cfg := testConfig()
	b := NewPromptBuilder(&cfg.Generation, &cfg.Research)

	prompt := b.SystemPrompt(promptBrief())

	assert.Contains(t, prompt, "Name: Ada")
	assert.Contains(t, prompt, "Never use: delve, tapestry")
}

func TestPromptBuilder_ChunkPrompts(t *testing.T) {
	cfg := testConfig()
	b := NewPromptBuilder(&cfg.Generation, &cfg.Research)
	brief := promptBrief()
	plan := NewPlanner(&cfg.Generation).Plan(2700, brief.ContentPoints)

	first := b.ChunkPrompt(ChunkContext{Brief: brief, Plan: plan, Index: 0})
	middle := b.ChunkPrompt(ChunkContext{Brief: brief, Plan: plan, Index: 1, MustCover: []string{"Saturn V stages"}})
	last := b.ChunkPrompt(ChunkContext{Brief: brief, Plan: plan, Index: 2})

	assert.Contains(t, first, "Write part 1 of 3")
	assert.Contains(t, first, "Open with this hook")
	assert.Contains(t, first, "Covered later (do not preempt)")
	assert.Contains(t, first, "Do not write a Description or Tags section")
	assert.NotContains(t, first, "Already covered earlier")

	assert.Contains(t, middle, "Orbit Coffee", "sponsor goes in the chunk owning its content point")
	assert.Contains(t, middle, "- Saturn V stages")
	assert.Contains(t, middle, "- Origins of the race")
	assert.NotContains(t, first, "Orbit Coffee")

	assert.Contains(t, last, "## Tags")
	assert.Contains(t, last, "At least 10 relevant tags")
	assert.Contains(t, last, "Key takeaway: Precision beats bravado")
	assert.Contains(t, last, "conclude the script")
}

func TestPromptBuilder_SingleShotRange(t *testing.T) {
	cfg := testConfig()
	b := NewPromptBuilder(&cfg.Generation, &cfg.Research)
	brief := promptBrief()
	plan := NewPlanner(&cfg.Generation).Plan(300, brief.ContentPoints)

	prompt := b.SingleShotPrompt(brief, plan, "")

	assert.Contains(t, prompt, "between 750 and 900 words")
	assert.Contains(t, prompt, "## Description")
}

func TestPromptBuilder_ResearchContextBudget(t *testing.T) {
	cfg := testConfig()
	cfg.Research.MaxContextChars = 3000
	b := NewPromptBuilder(&cfg.Generation, &cfg.Research)

	sources := []models.Source{
		{Title: "Low", Content: strings.Repeat("x", 5000), Relevance: 0.1},
		{Title: "Verified", Content: strings.Repeat("y", 5000), Verification: models.VerificationVerified},
	}
	ctx := b.ResearchContext(sources)

	assert.LessOrEqual(t, len(ctx), 3000)
	assert.True(t, strings.HasPrefix(ctx, "[1] Verified (verified)"))
	assert.Empty(t, b.ResearchContext(nil))
}
