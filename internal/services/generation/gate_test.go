package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/longform/internal/models"
)

func newGate() *Gate {
	cfg := testConfig()
	return NewGate(&cfg.Generation)
}

func TestGate_PassesCompleteScript(t *testing.T) {
	script := scriptWithWords(800, 10)
	report := newGate().Evaluate(GateInput{Text: script, ExpectedWords: 1000, PreDedupLength: 800, StitchedLength: 800})

	assert.True(t, report.Verdict.Passed, "failures: %+v", report.Verdict.Failures)
	assert.Equal(t, 800, report.WordCount)
	assert.True(t, report.Sections.HasDescription)
	assert.Equal(t, 2, report.Sections.TimestampCount)
	assert.Len(t, report.Sections.Tags, 10)
	assert.NoError(t, report.Err())
}

func TestGate_TagThreshold(t *testing.T) {
	gate := newGate()

	nine := gate.Evaluate(GateInput{Text: scriptWithWords(1000, 9), ExpectedWords: 1000})
	assert.False(t, nine.Verdict.Passed)
	assert.Equal(t, models.CheckTags, nine.Verdict.FailedCheck)

	ten := gate.Evaluate(GateInput{Text: scriptWithWords(1000, 10), ExpectedWords: 1000})
	assert.True(t, ten.Verdict.Passed)
}

func TestGate_WordRatioBoundary(t *testing.T) {
	gate := newGate()

	pass := gate.Evaluate(GateInput{Text: scriptWithWords(8000, 10), ExpectedWords: 10000})
	assert.True(t, pass.Verdict.Passed)
	assert.InDelta(t, 0.80, pass.Verdict.WordRatio, 1e-9)

	fail := gate.Evaluate(GateInput{Text: scriptWithWords(7990, 10), ExpectedWords: 10000})
	assert.False(t, fail.Verdict.Passed)
	assert.Equal(t, models.CheckWordCount, fail.Verdict.FailedCheck)

	err := fail.Err()
	require.Error(t, err)
	ge, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindQuality, ge.Kind)
	assert.Equal(t, "word_count", ge.Check)
	assert.True(t, ge.Retry)
	assert.Contains(t, ge.Details, "79.9%")
}

func TestGate_DedupGrace(t *testing.T) {
	gate := newGate()
	script := scriptWithWords(7600, 10)

	without := gate.Evaluate(GateInput{Text: script, ExpectedWords: 10000, PreDedupLength: 7600, StitchedLength: 7600})
	assert.False(t, without.Verdict.Passed)
	assert.False(t, without.Verdict.DedupGrace)

	with := gate.Evaluate(GateInput{Text: script, ExpectedWords: 10000, PreDedupLength: 8500, StitchedLength: 7600})
	assert.True(t, with.Verdict.Passed)
	assert.True(t, with.Verdict.DedupGrace)
	assert.InDelta(t, 0.75, with.Verdict.Threshold, 1e-9)
}

func TestGate_PlaceholderFailsRegardless(t *testing.T) {
	script := scriptWithWords(2000, 12)
	script = strings.Replace(script, "narration narration", "I'll continue in the next response", 1)

	report := newGate().Evaluate(GateInput{Text: script, ExpectedWords: 1000})

	assert.False(t, report.Verdict.Passed)
	assert.Equal(t, models.CheckPlaceholder, report.Verdict.FailedCheck)
	assert.True(t, report.Sections.HasTags)
	assert.NotEmpty(t, report.PlaceholderMatches)
}

func TestGate_DescriptionBypass(t *testing.T) {
	gate := newGate()
	script := words(990) + "\n\n## Tags\n" + strings.Join(realTags[:10], ", ")

	plain := gate.Evaluate(GateInput{Text: script, ExpectedWords: 1000})
	assert.False(t, plain.Verdict.Passed)
	assert.Equal(t, models.CheckDescription, plain.Verdict.FailedCheck)

	bypassed := gate.Evaluate(GateInput{Text: script, ExpectedWords: 1000, HighQualityResearch: true})
	assert.True(t, bypassed.Verdict.Passed)
}

func TestGate_TagsPlaceholder(t *testing.T) {
	script := words(1000) + "\n\n## Description\nAbout it.\n\n## Tags\n[insert tags here]\n"
	report := newGate().Evaluate(GateInput{Text: script, ExpectedWords: 1000})

	assert.False(t, report.Verdict.Passed)
	assert.True(t, report.Sections.TagsPlaceholder)
}

func TestGate_Idempotent(t *testing.T) {
	gate := newGate()
	in := GateInput{Text: scriptWithWords(900, 9), ExpectedWords: 1000, PreDedupLength: 950, StitchedLength: 900}

	first := gate.Evaluate(in)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, gate.Evaluate(in))
	}
}

func TestGate_NarrationHeadingIsNotDescription(t *testing.T) {
	gate := newGate()
	script := "## Writing a Job Description\n" + words(900) +
		"\n\n## Price Tags Explained\n" + words(50) +
		"\n\n## Tags\n" + strings.Join(realTags[:10], ", ")

	report := gate.Evaluate(GateInput{Text: script, ExpectedWords: 750})

	assert.False(t, report.Sections.HasDescription)
	assert.False(t, report.Verdict.Passed)
	assert.Equal(t, models.CheckDescription, report.Verdict.FailedCheck)
	assert.Len(t, report.Sections.Tags, 10, "the trailing Tags heading wins over narration headings")
}

func TestDetectSections_TitleForms(t *testing.T) {
	tests := []struct {
		name    string
		heading string
		want    bool
	}{
		{"bare keyword", "## Description", true},
		{"with colon", "### Description:", true},
		{"video prefix", "## Video Description", true},
		{"youtube prefix", "## YouTube Description", true},
		{"narration heading", "## Writing a Job Description", false},
		{"keyword first", "## Description of the Saturn V", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := DetectSections(words(20) + "\n\n" + tt.heading + "\nA summary.\n")
			assert.Equal(t, tt.want, sections.HasDescription)
		})
	}
}

func TestDetectSections_LabelStyle(t *testing.T) {
	script := words(50) + "\n\n**Description:** A short film about rockets.\n0:00 Intro\n1:30 Launch\n\nTags: " + strings.Join(realTags[:11], ", ")

	sections := DetectSections(script)

	assert.True(t, sections.HasDescription)
	assert.Equal(t, 2, sections.TimestampCount)
	assert.True(t, sections.HasTags)
	assert.Len(t, sections.Tags, 11)
	assert.False(t, sections.TagsPlaceholder)
}
