package models

// PointRange is a half-open [Start, End) range of content point indexes
type PointRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of content points in the range
func (r PointRange) Len() int {
	return r.End - r.Start
}

// ChunkPlan is the output of the duration planner
type ChunkPlan struct {
	TotalMinutes     int          `json:"total_minutes"`
	Chunked          bool         `json:"chunked"`
	ChunkCount       int          `json:"chunk_count"`
	MinWordsPerChunk int          `json:"min_words_per_chunk"`
	ExpectedWords    int          `json:"expected_words"`
	Ranges           []PointRange `json:"ranges"`
}

// OutlineSection is one per-chunk entry of an outline
type OutlineSection struct {
	Index         int      `json:"index"`
	Title         string   `json:"title"`
	TargetWords   int      `json:"target_words"`
	KeyPoints     []string `json:"key_points"`
	ContentPoints []string `json:"content_points"`
}

// Outline is a structured plan with explicit per-section word targets
type Outline struct {
	Sections []OutlineSection `json:"sections"`
}

// TotalTargetWords sums the section targets
func (o *Outline) TotalTargetWords() int {
	total := 0
	for _, s := range o.Sections {
		total += s.TargetWords
	}
	return total
}

// ContentPlanChunk lists the topic titles assigned to one chunk
type ContentPlanChunk struct {
	Index  int      `json:"index"`
	Topics []string `json:"topics"`
}

// ContentPlan distributes topics across chunks without word targets
type ContentPlan struct {
	Chunks []ContentPlanChunk `json:"chunks"`
}
