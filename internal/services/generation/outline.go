package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/llm"
)

// outlineSchema is the structured output requested for outlines
var outlineSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"sections": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":          map[string]interface{}{"type": "string"},
					"target_words":   map[string]interface{}{"type": "integer"},
					"key_points":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"content_points": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
				"required": []string{"title", "target_words", "key_points", "content_points"},
			},
		},
	},
	"required": []string{"sections"},
}

// OutlineGenerator requests and validates a structured outline
type OutlineGenerator struct {
	executor *Executor
	prompts  *PromptBuilder
	logger   arbor.ILogger
}

// NewOutlineGenerator creates an outline generator
func NewOutlineGenerator(executor *Executor, prompts *PromptBuilder, logger arbor.ILogger) *OutlineGenerator {
	return &OutlineGenerator{executor: executor, prompts: prompts, logger: logger}
}

// Generate asks the model for an outline and validates it against the brief and plan.
// Any error means the caller should fall back to a content plan.
func (g *OutlineGenerator) Generate(ctx context.Context, brief *models.ContentBrief, plan models.ChunkPlan, model string) (*models.Outline, error) {
	resp, err := g.executor.Generate(ctx, &llm.ContentRequest{
		Model:             model,
		SystemInstruction: "You plan long-form narrated video scripts. Reply with JSON only.",
		Messages:          []interfaces.Message{{Role: "user", Content: outlinePrompt(brief, plan)}},
		MaxTokens:         4096,
		Temperature:       0.4,
		OutputSchema:      outlineSchema,
	})
	if err != nil {
		return nil, err
	}

	outline, err := ParseOutline(resp.Text)
	if err != nil {
		return nil, err
	}
	if err := ValidateOutline(outline, brief, plan); err != nil {
		return nil, err
	}

	g.logger.Debug().
		Int("sections", len(outline.Sections)).
		Int("target_words", outline.TotalTargetWords()).
		Msg("Outline generated")
	return outline, nil
}

func outlinePrompt(brief *models.ContentBrief, plan models.ChunkPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create an outline for a %d-minute narrated script about %q, split into exactly %d sections written one after another.\n", plan.TotalMinutes, brief.Topic, plan.ChunkCount)
	fmt.Fprintf(&sb, "The section word targets must add up to at least %d words, each at least %d.\n\n", plan.ExpectedWords, plan.MinWordsPerChunk)
	writeField(&sb, "Audience", brief.Audience)
	writeField(&sb, "Problem", brief.Frame.Problem)
	writeField(&sb, "Solution", brief.Frame.Solution)
	writeField(&sb, "Transformation", brief.Frame.Transformation)
	sb.WriteString("\nContent points, already assigned to sections:\n")
	for i := 0; i < plan.ChunkCount; i++ {
		fmt.Fprintf(&sb, "Section %d:\n", i+1)
		for _, p := range pointsFor(brief, plan, i) {
			fmt.Fprintf(&sb, "- %s", p.Title)
			if p.KeyTakeaway != "" {
				fmt.Fprintf(&sb, " (takeaway: %s)", p.KeyTakeaway)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nFor each section give a title, target_words, 2-5 key_points, and content_points listing the exact content point titles it covers.\n")
	return sb.String()
}

type outlineJSON struct {
	Sections []struct {
		Title         string   `json:"title"`
		TargetWords   int      `json:"target_words"`
		KeyPoints     []string `json:"key_points"`
		ContentPoints []string `json:"content_points"`
	} `json:"sections"`
}

// ParseOutline decodes a model reply into an Outline, tolerating code fences
func ParseOutline(text string) (*models.Outline, error) {
	var raw outlineJSON
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(text)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse outline JSON: %w", err)
	}

	outline := &models.Outline{}
	for i, s := range raw.Sections {
		outline.Sections = append(outline.Sections, models.OutlineSection{
			Index:         i,
			Title:         strings.TrimSpace(s.Title),
			TargetWords:   s.TargetWords,
			KeyPoints:     s.KeyPoints,
			ContentPoints: s.ContentPoints,
		})
	}
	return outline, nil
}

// ValidateOutline checks one section per chunk and that every content point title is
// traceable to a section. Section targets are raised to the chunk minimum and scaled so
// their sum covers the expected word count.
func ValidateOutline(outline *models.Outline, brief *models.ContentBrief, plan models.ChunkPlan) error {
	if len(outline.Sections) != plan.ChunkCount {
		return fmt.Errorf("outline has %d sections, plan has %d chunks", len(outline.Sections), plan.ChunkCount)
	}

	var untraced []string
	for _, p := range brief.ContentPoints {
		if !traceable(p.Title, outline) {
			untraced = append(untraced, p.Title)
		}
	}
	if len(untraced) > 0 {
		return fmt.Errorf("outline does not cover content points: %s", strings.Join(untraced, "; "))
	}

	for i := range outline.Sections {
		outline.Sections[i].Index = i
		if outline.Sections[i].Title == "" {
			return fmt.Errorf("outline section %d has no title", i)
		}
		if outline.Sections[i].TargetWords < plan.MinWordsPerChunk {
			outline.Sections[i].TargetWords = plan.MinWordsPerChunk
		}
	}

	if total := outline.TotalTargetWords(); total < plan.ExpectedWords && total > 0 {
		scale := float64(plan.ExpectedWords) / float64(total)
		for i := range outline.Sections {
			outline.Sections[i].TargetWords = int(math.Ceil(float64(outline.Sections[i].TargetWords) * scale))
		}
	}
	return nil
}

func traceable(title string, outline *models.Outline) bool {
	nt := normalize(title)
	if nt == "" {
		return true
	}
	for _, s := range outline.Sections {
		if strings.Contains(normalize(s.Title), nt) {
			return true
		}
		for _, kp := range s.KeyPoints {
			if strings.Contains(normalize(kp), nt) {
				return true
			}
		}
		for _, cp := range s.ContentPoints {
			ncp := normalize(cp)
			if ncp != "" && (strings.Contains(ncp, nt) || strings.Contains(nt, ncp)) {
				return true
			}
		}
	}
	return false
}

// BuildContentPlan distributes content point titles across chunks from the plan ranges
func BuildContentPlan(brief *models.ContentBrief, plan models.ChunkPlan) *models.ContentPlan {
	cp := &models.ContentPlan{}
	for i := 0; i < plan.ChunkCount; i++ {
		chunk := models.ContentPlanChunk{Index: i}
		for _, p := range pointsFor(brief, plan, i) {
			chunk.Topics = append(chunk.Topics, p.Title)
		}
		cp.Chunks = append(cp.Chunks, chunk)
	}
	return cp
}
