package generation

import (
	"fmt"
	"strings"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/models"
)

// PromptBuilder assembles system, chunk, single-shot and expansion prompts
type PromptBuilder struct {
	gen      *common.GenerationConfig
	research *common.ResearchConfig
}

// NewPromptBuilder creates a prompt builder
func NewPromptBuilder(gen *common.GenerationConfig, research *common.ResearchConfig) *PromptBuilder {
	return &PromptBuilder{gen: gen, research: research}
}

// ChunkContext is the per-chunk input to ChunkPrompt
type ChunkContext struct {
	Brief       *models.ContentBrief
	Plan        models.ChunkPlan
	Index       int
	Outline     *models.Outline
	ContentPlan *models.ContentPlan
	Research    string
	MustCover   []string // key points a previous attempt left out entirely
}

// SystemPrompt describes the narrator and the output rules shared by every call
func (b *PromptBuilder) SystemPrompt(brief *models.ContentBrief) string {
	var sb strings.Builder
	sb.WriteString("You are an experienced scriptwriter for long-form narrated videos. ")
	sb.WriteString("You write complete, speakable narration in markdown. Use markdown headings for major sections.\n\n")

	v := brief.Voice
	if v.Name != "" || v.Style != "" || v.Pacing != "" || v.Vocabulary != "" {
		sb.WriteString("Narrator voice:\n")
		writeField(&sb, "Name", v.Name)
		writeField(&sb, "Style", v.Style)
		writeField(&sb, "Pacing", v.Pacing)
		writeField(&sb, "Vocabulary", v.Vocabulary)
		if len(v.Avoid) > 0 {
			writeField(&sb, "Never use", strings.Join(v.Avoid, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Rules:\n")
	sb.WriteString("- Write the full text. Never summarise what you would write, never leave notes such as [continue here] or promises to continue in a later response.\n")
	sb.WriteString("- Never mention parts, chunks, prompts or word counts in the script.\n")
	sb.WriteString("- Ground factual claims in the research provided. Do not present disputed claims as fact.\n")
	return sb.String()
}

// ChunkPrompt builds the prompt for one chunk of a chunked script
func (b *PromptBuilder) ChunkPrompt(c ChunkContext) string {
	brief := c.Brief
	last := c.Index == c.Plan.ChunkCount-1
	points := pointsFor(brief, c.Plan, c.Index)

	var section *models.OutlineSection
	if c.Outline != nil && c.Index < len(c.Outline.Sections) {
		section = &c.Outline.Sections[c.Index]
	}
	target := c.Plan.MinWordsPerChunk
	if section != nil && section.TargetWords > target {
		target = section.TargetWords
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write part %d of %d of a narrated script (about %d minutes in total).\n\n", c.Index+1, c.Plan.ChunkCount, c.Plan.TotalMinutes)
	b.writeBriefContext(&sb, brief)

	if section != nil {
		fmt.Fprintf(&sb, "## This part: %s\n", section.Title)
		if len(section.KeyPoints) > 0 {
			sb.WriteString("Key points to cover:\n")
			for _, kp := range section.KeyPoints {
				fmt.Fprintf(&sb, "- %s\n", kp)
			}
		}
		sb.WriteString("\n")
	}

	if len(points) > 0 {
		sb.WriteString("## Content points for this part (in order)\n")
		writePoints(&sb, points)
	} else {
		sb.WriteString("## Content for this part\nDeepen the narrative with examples, stories and evidence from the research that fit the overall frame.\n\n")
	}

	if len(c.MustCover) > 0 {
		sb.WriteString("## Required\nA previous draft of this part left these out entirely. Cover each one explicitly:\n")
		for _, m := range c.MustCover {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
		sb.WriteString("\n")
	}

	if prev := topicsBefore(brief, c.Plan, c.Outline, c.ContentPlan, c.Index); len(prev) > 0 {
		sb.WriteString("## Already covered earlier (do not repeat)\n")
		for _, t := range prev {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
		sb.WriteString("\n")
	}
	if next := topicsAfter(brief, c.Plan, c.Outline, c.ContentPlan, c.Index); len(next) > 0 {
		sb.WriteString("## Covered later (do not preempt)\n")
		for _, t := range next {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
		sb.WriteString("\n")
	}

	if c.Index == 0 && brief.Hook != "" {
		fmt.Fprintf(&sb, "## Opening hook\nOpen with this hook: %s\n\n", brief.Hook)
	}
	if brief.Sponsor != nil && sponsorChunk(brief, c.Plan) == c.Index {
		b.writeSponsor(&sb, brief)
	}

	b.writeResearch(&sb, c.Research)

	sb.WriteString("## Length\n")
	fmt.Fprintf(&sb, "Write at least %d words of narration for this part.\n", target)
	switch {
	case c.Index == 0:
		sb.WriteString("Start the script with the introduction. Do not conclude the script.\n")
	case last:
		sb.WriteString("Continue directly from the previous part without re-introducing the topic, then conclude the script.\n")
	default:
		sb.WriteString("Continue directly from the previous part without re-introducing the topic. Do not conclude the script.\n")
	}

	if last {
		b.writeTrailingSections(&sb, brief)
	} else {
		sb.WriteString("Do not write a Description or Tags section in this part.\n")
	}
	return sb.String()
}

// SingleShotPrompt builds the one prompt for a non-chunked script
func (b *PromptBuilder) SingleShotPrompt(brief *models.ContentBrief, plan models.ChunkPlan, research string) string {
	target := plan.ExpectedWords
	upper := ceilMul(target, b.gen.SingleShotCeiling)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a complete narrated script of about %d minutes.\n\n", plan.TotalMinutes)
	b.writeBriefContext(&sb, brief)

	sb.WriteString("## Content points (in order)\n")
	writePoints(&sb, brief.ContentPoints)

	if brief.Hook != "" {
		fmt.Fprintf(&sb, "## Opening hook\nOpen with this hook: %s\n\n", brief.Hook)
	}
	if brief.Sponsor != nil {
		b.writeSponsor(&sb, brief)
	}
	b.writeResearch(&sb, research)

	sb.WriteString("## Length\n")
	fmt.Fprintf(&sb, "The narration must be between %d and %d words. Do not stop early and do not exceed %d words.\n", target, upper, upper)
	b.writeTrailingSections(&sb, brief)
	return sb.String()
}

// ExpansionPrompt asks the model to lengthen existing text toward targetWords without rewriting it
func (b *PromptBuilder) ExpansionPrompt(existing string, targetWords int, points []models.ContentPoint, research string, last bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The narration below has %d words. Expand it to at least %d words.\n\n", CountWords(existing), targetWords)
	sb.WriteString("Keep its structure, order and voice. Add depth: examples, explanation, evidence from the research and smoother transitions. ")
	sb.WriteString("Return the complete expanded narration only, with no commentary.\n")
	if last {
		sb.WriteString("Keep the Description and Tags sections at the end, updating the timestamps if needed.\n")
	}
	sb.WriteString("\n")

	if len(points) > 0 {
		sb.WriteString("## Content points this narration covers\n")
		writePoints(&sb, points)
	}
	b.writeResearch(&sb, research)

	sb.WriteString("## Narration to expand\n")
	sb.WriteString(existing)
	sb.WriteString("\n")
	return sb.String()
}

// ResearchContext renders ranked sources into a bounded prompt section
func (b *PromptBuilder) ResearchContext(sources []models.Source) string {
	budget := b.research.MaxContextChars
	if budget <= 0 || len(sources) == 0 {
		return ""
	}
	ranked := RankSources(sources)
	perSource := budget / len(ranked)
	if perSource < 1000 {
		perSource = 1000
	}

	var sb strings.Builder
	for i, s := range ranked {
		content := strings.TrimSpace(s.Content)
		if content == "" && s.URL == "" {
			continue
		}

		var labels []string
		if s.Verification != "" {
			labels = append(labels, string(s.Verification))
		}
		if s.Starred {
			labels = append(labels, "starred")
		}
		header := fmt.Sprintf("[%d] %s", i+1, s.Title)
		if len(labels) > 0 {
			header += " (" + strings.Join(labels, ", ") + ")"
		}

		entry := header + "\n"
		if s.URL != "" {
			entry += s.URL + "\n"
		}
		if content != "" {
			entry += truncateRunes(content, perSource) + "\n"
		}
		if sb.Len()+len(entry) > budget {
			break
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func (b *PromptBuilder) writeBriefContext(sb *strings.Builder, brief *models.ContentBrief) {
	sb.WriteString("## Brief\n")
	writeField(sb, "Topic", brief.Topic)
	writeField(sb, "Audience", brief.Audience)
	writeField(sb, "Tone", brief.Tone)
	writeField(sb, "Problem", brief.Frame.Problem)
	writeField(sb, "Solution", brief.Frame.Solution)
	writeField(sb, "Transformation", brief.Frame.Transformation)
	sb.WriteString("\n")
}

func (b *PromptBuilder) writeSponsor(sb *strings.Builder, brief *models.ContentBrief) {
	s := brief.Sponsor
	after := s.AfterPoint
	if after >= len(brief.ContentPoints) {
		after = len(brief.ContentPoints) - 1
	}
	sb.WriteString("## Sponsor read\n")
	if after >= 0 && after < len(brief.ContentPoints) {
		fmt.Fprintf(sb, "Place a natural sponsor read right after covering %q.\n", brief.ContentPoints[after].Title)
	}
	writeField(sb, "Sponsor", s.Name)
	writeField(sb, "Message", s.Message)
	writeField(sb, "Call to action", s.CallToAction)
	sb.WriteString("\n")
}

func (b *PromptBuilder) writeResearch(sb *strings.Builder, research string) {
	if research == "" {
		return
	}
	sb.WriteString("## Research\n")
	sb.WriteString(research)
	sb.WriteString("\n\n")
}

func (b *PromptBuilder) writeTrailingSections(sb *strings.Builder, brief *models.ContentBrief) {
	sb.WriteString("\n## Required closing sections\n")
	sb.WriteString("After the narration, add these two sections exactly:\n\n")
	sb.WriteString("## Description\n")
	sb.WriteString("A two or three sentence video description, followed by one timestamp line per content point in the form `MM:SS Title`, starting at 00:00.\n\n")
	sb.WriteString("## Tags\n")
	fmt.Fprintf(sb, "At least %d relevant tags on one line, separated by commas.\n", b.gen.MinTags)
}

// pointsFor returns the content points assigned to chunk idx
func pointsFor(brief *models.ContentBrief, plan models.ChunkPlan, idx int) []models.ContentPoint {
	if idx < 0 || idx >= len(plan.Ranges) {
		return nil
	}
	r := plan.Ranges[idx]
	if r.Start >= r.End || r.End > len(brief.ContentPoints) {
		return nil
	}
	return brief.ContentPoints[r.Start:r.End]
}

// chunkTopics returns the topic titles for chunk idx from the outline, content plan or ranges
func chunkTopics(brief *models.ContentBrief, plan models.ChunkPlan, outline *models.Outline, contentPlan *models.ContentPlan, idx int) []string {
	var topics []string
	if outline != nil && idx < len(outline.Sections) {
		topics = append(topics, outline.Sections[idx].Title)
	} else if contentPlan != nil && idx < len(contentPlan.Chunks) {
		return contentPlan.Chunks[idx].Topics
	}
	for _, p := range pointsFor(brief, plan, idx) {
		topics = append(topics, p.Title)
	}
	return topics
}

func topicsBefore(brief *models.ContentBrief, plan models.ChunkPlan, outline *models.Outline, contentPlan *models.ContentPlan, idx int) []string {
	var out []string
	for i := 0; i < idx; i++ {
		out = append(out, chunkTopics(brief, plan, outline, contentPlan, i)...)
	}
	return out
}

func topicsAfter(brief *models.ContentBrief, plan models.ChunkPlan, outline *models.Outline, contentPlan *models.ContentPlan, idx int) []string {
	var out []string
	for i := idx + 1; i < plan.ChunkCount; i++ {
		out = append(out, chunkTopics(brief, plan, outline, contentPlan, i)...)
	}
	return out
}

// sponsorChunk returns the index of the chunk owning the sponsor's AfterPoint
func sponsorChunk(brief *models.ContentBrief, plan models.ChunkPlan) int {
	if brief.Sponsor == nil {
		return -1
	}
	after := brief.Sponsor.AfterPoint
	for i, r := range plan.Ranges {
		if after >= r.Start && after < r.End {
			return i
		}
	}
	return plan.ChunkCount - 1
}

func writePoints(sb *strings.Builder, points []models.ContentPoint) {
	for i, p := range points {
		fmt.Fprintf(sb, "%d. %s", i+1, p.Title)
		if p.DurationSeconds > 0 {
			fmt.Fprintf(sb, " (about %d min)", (p.DurationSeconds+59)/60)
		}
		sb.WriteString("\n")
		if p.Description != "" {
			fmt.Fprintf(sb, "   %s\n", p.Description)
		}
		if p.KeyTakeaway != "" {
			fmt.Fprintf(sb, "   Key takeaway: %s\n", p.KeyTakeaway)
		}
	}
	sb.WriteString("\n")
}

func writeField(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "%s: %s\n", label, value)
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
