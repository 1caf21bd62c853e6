package generation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/models"
)

// placeholderPatterns are continuation and template artifacts that fail a script outright
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[\s*(?:continue|continued|continuing|continues|content continues|to be continued|rest of|remaining|more content|insert|placeholder|add)[^\]]*\]`),
	regexp.MustCompile(`(?i)\bI['’]ll continue in the next (?:response|message|part|reply)\b`),
	regexp.MustCompile(`(?i)\b(?:I will|I['’]ll|let me) continue (?:with|in) (?:the )?(?:next|following) (?:response|message|part|section)\b`),
	regexp.MustCompile(`(?i)\(\s*continued (?:in|from) (?:the )?(?:next|previous) (?:part|section|response)\s*\)`),
	regexp.MustCompile(`(?i)\bto be continued\b`),
	regexp.MustCompile(`(?i)\[\s*(?:\.\.\.|…)\s*\]`),
	regexp.MustCompile(`(?i)\[(?:section|part|chunk) \d+[^\]]*\]`),
	regexp.MustCompile(`(?i)\blorem ipsum\b`),
	regexp.MustCompile(`(?i)\bcontinue (?:writing|generating) from here\b`),
}

// FindPlaceholders returns every placeholder or continuation artifact in text
func FindPlaceholders(text string) []string {
	var matches []string
	for _, re := range placeholderPatterns {
		matches = append(matches, re.FindAllString(text, -1)...)
	}
	return matches
}

// GateInput is everything the completeness gate looks at
type GateInput struct {
	Text                string
	ExpectedWords       int
	PreDedupLength      int
	StitchedLength      int
	HighQualityResearch bool
}

// GateReport is the gate verdict plus the findings behind it
type GateReport struct {
	WordCount          int
	Sections           models.DetectedSections
	PlaceholderMatches []string
	Verdict            models.GateVerdict
}

// Gate validates a whole script before it may be billed and persisted.
// Evaluate depends only on its input, so re-running it yields the same verdict.
type Gate struct {
	cfg *common.GenerationConfig
}

// NewGate creates a completeness gate over the generation policy
func NewGate(cfg *common.GenerationConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate runs every check and reports all failures; the first in gate order is FailedCheck
func (g *Gate) Evaluate(in GateInput) GateReport {
	report := GateReport{
		WordCount:          CountWords(in.Text),
		Sections:           DetectSections(in.Text),
		PlaceholderMatches: FindPlaceholders(in.Text),
	}
	verdict := &report.Verdict

	// Placeholders fail regardless of any other signal
	if len(report.PlaceholderMatches) > 0 {
		verdict.Failures = append(verdict.Failures, models.GateFailure{
			Check:  models.CheckPlaceholder,
			Detail: fmt.Sprintf("script contains continuation or placeholder text: %q", report.PlaceholderMatches[0]),
		})
	}

	threshold := g.cfg.GateMinRatio
	if in.StitchedLength > 0 && float64(in.PreDedupLength) > float64(in.StitchedLength)*g.cfg.DedupShrinkFactor {
		threshold = g.cfg.GateDedupRatio
		verdict.DedupGrace = true
	}
	verdict.Threshold = threshold
	verdict.WordRatio = 1
	if in.ExpectedWords > 0 {
		verdict.WordRatio = float64(report.WordCount) / float64(in.ExpectedWords)
		if float64(report.WordCount) < threshold*float64(in.ExpectedWords)-1e-9 {
			verdict.Failures = append(verdict.Failures, models.GateFailure{
				Check: models.CheckWordCount,
				Detail: fmt.Sprintf("script has %d words, %.1f%% of the expected %d (minimum %.0f%%)",
					report.WordCount, verdict.WordRatio*100, in.ExpectedWords, threshold*100),
			})
		}
	}

	// Tags have no bypass
	switch {
	case !report.Sections.HasTags:
		verdict.Failures = append(verdict.Failures, models.GateFailure{Check: models.CheckTags, Detail: "Tags section is missing"})
	case report.Sections.TagsPlaceholder:
		verdict.Failures = append(verdict.Failures, models.GateFailure{Check: models.CheckTags, Detail: "Tags section contains placeholder text"})
	case len(report.Sections.Tags) < g.cfg.MinTags:
		verdict.Failures = append(verdict.Failures, models.GateFailure{
			Check:  models.CheckTags,
			Detail: fmt.Sprintf("Tags section has %d valid tags, need at least %d", len(report.Sections.Tags), g.cfg.MinTags),
		})
	}

	if !report.Sections.HasDescription && !in.HighQualityResearch {
		verdict.Failures = append(verdict.Failures, models.GateFailure{Check: models.CheckDescription, Detail: "Description section is missing"})
	}

	verdict.Passed = len(verdict.Failures) == 0
	if !verdict.Passed {
		verdict.FailedCheck = verdict.Failures[0].Check
	}
	return report
}

// Err converts a failing verdict into the retryable error naming the failed check
func (r GateReport) Err() error {
	if r.Verdict.Passed {
		return nil
	}
	details := make([]string, 0, len(r.Verdict.Failures))
	for _, f := range r.Verdict.Failures {
		details = append(details, f.Detail)
	}
	return QualityError(string(r.Verdict.FailedCheck), "script failed completeness check", strings.Join(details, "; "))
}
