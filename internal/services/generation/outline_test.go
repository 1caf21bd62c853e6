package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/llm"
)

func outlineBrief() *models.ContentBrief {
	return &models.ContentBrief{
		UserID: "u1",
		Topic:  "The Apollo program",
		ContentPoints: []models.ContentPoint{
			{Title: "Origins of the race"},
			{Title: "Saturn V"},
			{Title: "Lunar landing"},
		},
	}
}

const outlineReply = "```json\n" + `{"sections": [
  {"title": "Origins of the race", "target_words": 1500, "key_points": ["Sputnik shock"], "content_points": ["Origins of the race"]},
  {"title": "Building the rocket", "target_words": 2500, "key_points": ["Saturn V stages"], "content_points": ["Saturn V"]},
  {"title": "Touchdown", "target_words": 2000, "key_points": ["Eagle has landed"], "content_points": ["Lunar landing"]}
]}` + "\n```"

func TestParseAndValidateOutline(t *testing.T) {
	cfg := testConfig()
	plan := NewPlanner(&cfg.Generation).Plan(2100, outlineBrief().ContentPoints)

	outline, err := ParseOutline(outlineReply)
	require.NoError(t, err)
	require.Len(t, outline.Sections, 3)

	require.NoError(t, ValidateOutline(outline, outlineBrief(), plan))
	for _, s := range outline.Sections {
		assert.GreaterOrEqual(t, s.TargetWords, plan.MinWordsPerChunk)
	}
	assert.GreaterOrEqual(t, outline.TotalTargetWords(), plan.ExpectedWords)
	assert.Equal(t, 2, outline.Sections[2].Index)
}

func TestValidateOutline_Rejects(t *testing.T) {
	cfg := testConfig()
	brief := outlineBrief()
	plan := NewPlanner(&cfg.Generation).Plan(2100, brief.ContentPoints)

	t.Run("wrong section count", func(t *testing.T) {
		outline := &models.Outline{Sections: []models.OutlineSection{{Title: "Only one", ContentPoints: []string{"Origins of the race", "Saturn V", "Lunar landing"}}}}
		assert.Error(t, ValidateOutline(outline, brief, plan))
	})

	t.Run("untraceable content point", func(t *testing.T) {
		outline, err := ParseOutline(outlineReply)
		require.NoError(t, err)
		outline.Sections[2].Title = "Afterwards"
		outline.Sections[2].ContentPoints = []string{"Legacy"}
		err = ValidateOutline(outline, brief, plan)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Lunar landing")
	})
}

func TestParseOutline_Invalid(t *testing.T) {
	_, err := ParseOutline("I cannot produce an outline")
	assert.Error(t, err)
}

func TestBuildContentPlan(t *testing.T) {
	cfg := testConfig()
	brief := outlineBrief()
	plan := NewPlanner(&cfg.Generation).Plan(1200, brief.ContentPoints)

	cp := BuildContentPlan(brief, plan)

	require.Len(t, cp.Chunks, 2)
	var all []string
	for _, c := range cp.Chunks {
		all = append(all, c.Topics...)
	}
	assert.Equal(t, []string{"Origins of the race", "Saturn V", "Lunar landing"}, all)
}

func TestOutlineGenerator_RequestsSchema(t *testing.T) {
	cfg := testConfig()
	brief := outlineBrief()
	plan := NewPlanner(&cfg.Generation).Plan(2100, brief.ContentPoints)

	gen := new(MockTextGenerator)
	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req *llm.ContentRequest) bool {
		return req.OutputSchema != nil && req.Model == "claude-opus-4-1"
	})).Return(&llm.ContentResponse{Text: outlineReply}, nil).Once()

	executor := NewExecutor(gen, llm.NewRetryConfig(&cfg.LLM), arbor.NewLogger())
	outline, err := NewOutlineGenerator(executor, NewPromptBuilder(&cfg.Generation, &cfg.Research), arbor.NewLogger()).
		Generate(context.Background(), brief, plan, "claude-opus-4-1")

	require.NoError(t, err)
	assert.Len(t, outline.Sections, 3)
	gen.AssertExpectations(t)
}
