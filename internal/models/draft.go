package models

// GateCheck names a completeness gate check
type GateCheck string

const (
	CheckWordCount   GateCheck = "word_count"
	CheckTags        GateCheck = "tags"
	CheckDescription GateCheck = "description"
	CheckPlaceholder GateCheck = "placeholder"
)

// DetectedSections are the structural sections found in a script
type DetectedSections struct {
	HasDescription  bool     `json:"has_description"`
	TimestampCount  int      `json:"timestamp_count"`
	HasTags         bool     `json:"has_tags"`
	Tags            []string `json:"tags,omitempty"`
	TagsPlaceholder bool     `json:"tags_placeholder"`
}

// GateVerdict is the result of the completeness gate.
// Failures lists every failing check; FailedCheck is the first in gate order.
type GateVerdict struct {
	Passed      bool          `json:"passed"`
	FailedCheck GateCheck     `json:"failed_check,omitempty"`
	Failures    []GateFailure `json:"failures,omitempty"`
	WordRatio   float64       `json:"word_ratio"`
	Threshold   float64       `json:"threshold"`
	DedupGrace  bool          `json:"dedup_grace"`
}

// GateFailure describes one failing check
type GateFailure struct {
	Check  GateCheck `json:"check"`
	Detail string    `json:"detail"`
}

// ScriptDraft is the stitched or single-shot script plus gate findings
type ScriptDraft struct {
	Text               string           `json:"text"`
	WordCount          int              `json:"word_count"`
	ExpectedWords      int              `json:"expected_words"`
	PreDedupLength     int              `json:"pre_dedup_length"`
	StitchedLength     int              `json:"stitched_length"`
	RemovedWords       int              `json:"removed_words"`
	Sections           DetectedSections `json:"sections"`
	PlaceholderMatches []string         `json:"placeholder_matches,omitempty"`
	Warnings           []string         `json:"warnings,omitempty"`
	Verdict            GateVerdict      `json:"verdict"`
}
