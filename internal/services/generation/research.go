package generation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/models"
)

// ResearchAssessment summarises the research attached to a brief
type ResearchAssessment struct {
	Total            int  `json:"total"`
	Substantive      int  `json:"substantive"`
	Snippets         int  `json:"snippets"`
	Verified         int  `json:"verified"`
	Starred          int  `json:"starred"`
	Synthesized      int  `json:"synthesized"`
	SubstantiveChars int  `json:"substantive_chars"`
	SubstantiveWords int  `json:"substantive_words"`
	HighQuality      bool `json:"high_quality"`
}

// IsSubstantive reports whether a source carries real content rather than a bare link or snippet
func IsSubstantive(s models.Source, cfg *common.ResearchConfig) bool {
	return s.Synthesized || len(strings.TrimSpace(s.Content)) > cfg.SubstantiveMinChars
}

// AssessResearch counts substantive sources and evaluates the high-quality research bar
func AssessResearch(sources []models.Source, research *common.ResearchConfig, gen *common.GenerationConfig) ResearchAssessment {
	a := ResearchAssessment{Total: len(sources)}

	for _, s := range sources {
		content := strings.TrimSpace(s.Content)
		if IsSubstantive(s, research) {
			a.Substantive++
			a.SubstantiveChars += len(content)
			a.SubstantiveWords += CountWords(content)
		} else if len(content) < research.SnippetMaxChars {
			a.Snippets++
		}
		if s.Verification == models.VerificationVerified {
			a.Verified++
		}
		if s.Starred {
			a.Starred++
		}
		if s.Synthesized {
			a.Synthesized++
		}
	}

	a.HighQuality = (a.Verified >= gen.QualityMinVerified || a.Starred >= gen.QualityMinStarred) &&
		a.Synthesized >= gen.QualityMinSynthesized

	return a
}

// CheckResearchAdequacy rejects briefs whose research is too thin to ground a script
func CheckResearchAdequacy(a ResearchAssessment, cfg *common.ResearchConfig) error {
	if !cfg.Required {
		return nil
	}

	var problems []string
	if a.Substantive < cfg.MinSubstantive {
		problems = append(problems, fmt.Sprintf("%d substantive sources (need %d)", a.Substantive, cfg.MinSubstantive))
	}
	if a.SubstantiveChars < cfg.MinTotalChars {
		problems = append(problems, fmt.Sprintf("%d characters of substantive content (need %d)", a.SubstantiveChars, cfg.MinTotalChars))
	}
	if a.SubstantiveWords < cfg.MinTotalWords {
		problems = append(problems, fmt.Sprintf("%d words of substantive content (need %d)", a.SubstantiveWords, cfg.MinTotalWords))
	}
	if len(problems) == 0 {
		return nil
	}

	details := strings.Join(problems, "; ")
	if a.Snippets > 0 {
		details = fmt.Sprintf("%s; %d of %d sources are search snippets without fetched content", details, a.Snippets, a.Total)
	}
	return InputError("research", "insufficient research", details)
}

// RankSources orders sources for prompt context: starred or verified first, then by relevance.
// Disputed sources sort last.
func RankSources(sources []models.Source) []models.Source {
	ranked := make([]models.Source, len(sources))
	copy(ranked, sources)

	priority := func(s models.Source) int {
		switch {
		case s.Verification == models.VerificationDisputed:
			return 3
		case s.Starred && s.Verification == models.VerificationVerified:
			return 0
		case s.Starred || s.Verification == models.VerificationVerified:
			return 1
		default:
			return 2
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := priority(ranked[i]), priority(ranked[j])
		if pi != pj {
			return pi < pj
		}
		return ranked[i].Relevance > ranked[j].Relevance
	})
	return ranked
}
