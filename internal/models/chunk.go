package models

// ChunkState is a state of the per-chunk validation machine
type ChunkState string

const (
	ChunkGenerated      ChunkState = "GENERATED"
	ChunkExpandingTier1 ChunkState = "EXPANDING_TIER1"
	ChunkExpandingTier2 ChunkState = "EXPANDING_TIER2"
	ChunkRegenerating   ChunkState = "REGENERATING"
	ChunkAccepted       ChunkState = "ACCEPTED"
	ChunkRejected       ChunkState = "REJECTED"
)

// Terminal reports whether no further transitions follow
func (s ChunkState) Terminal() bool {
	return s == ChunkAccepted || s == ChunkRejected
}

// ExpansionAttempt records one expansion call against a chunk
type ExpansionAttempt struct {
	Tier        int  `json:"tier"`
	TargetWords int  `json:"target_words"`
	Before      int  `json:"before"`
	After       int  `json:"after"`
	Declined    bool `json:"declined"`
}

// BoundaryViolationKind classifies a cross-chunk topic leak
type BoundaryViolationKind string

const (
	BoundaryForwardLeak BoundaryViolationKind = "forward_leak"
	BoundaryDuplicate   BoundaryViolationKind = "duplicate"
)

// BoundaryViolation is an advisory finding from the boundary check
type BoundaryViolation struct {
	Kind         BoundaryViolationKind `json:"kind"`
	Heading      string                `json:"heading"`
	MatchedTitle string                `json:"matched_title"`
}

// OutlineIssue is a finding from comparing a chunk to its outline section
type OutlineIssue struct {
	Missing  string `json:"missing"`
	Critical bool   `json:"critical"`
}

// ChunkResult is the resolved outcome of one chunk
type ChunkResult struct {
	Index              int                 `json:"index"`
	Text               string              `json:"-"`
	WordCount          int                 `json:"word_count"`
	MinWords           int                 `json:"min_words"`
	Accepted           bool                `json:"accepted"`
	Attempts           int                 `json:"attempts"`
	Expansions         []ExpansionAttempt  `json:"expansions,omitempty"`
	FinalState         ChunkState          `json:"final_state"`
	Transitions        []ChunkState        `json:"transitions,omitempty"`
	BoundaryViolations []BoundaryViolation `json:"boundary_violations,omitempty"`
	OutlineIssues      []OutlineIssue      `json:"outline_issues,omitempty"`
}

// Expanded reports whether any expansion was attempted on the kept text
func (c *ChunkResult) Expanded() bool {
	return len(c.Expansions) > 0
}

// Ratio returns word count as a fraction of the chunk minimum
func (c *ChunkResult) Ratio() float64 {
	if c.MinWords <= 0 {
		return 1
	}
	return float64(c.WordCount) / float64(c.MinWords)
}
