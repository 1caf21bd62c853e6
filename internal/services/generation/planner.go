package generation

import (
	"math"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/models"
)

// Planner converts a target duration into a chunk plan
type Planner struct {
	cfg *common.GenerationConfig
}

// NewPlanner creates a duration planner over the generation policy
func NewPlanner(cfg *common.GenerationConfig) *Planner {
	return &Planner{cfg: cfg}
}

// EffectiveDuration applies the default duration to an unset value
func (p *Planner) EffectiveDuration(durationSeconds int) int {
	if durationSeconds <= 0 {
		return p.cfg.DefaultDurationSeconds
	}
	return durationSeconds
}

// TotalMinutes returns ceil(duration/60) after defaulting
func (p *Planner) TotalMinutes(durationSeconds int) int {
	d := p.EffectiveDuration(durationSeconds)
	return (d + 59) / 60
}

// NeedsChunking reports whether a duration is generated in multiple chunks
func (p *Planner) NeedsChunking(durationSeconds int) bool {
	return p.TotalMinutes(durationSeconds) > p.cfg.ChunkingThresholdMinutes
}

// NeedsOutline reports whether a duration requires a structured outline
func (p *Planner) NeedsOutline(durationSeconds int) bool {
	return p.TotalMinutes(durationSeconds) >= p.cfg.OutlineThresholdMinutes
}

// Plan computes the chunk plan for a duration and ordered content points
func (p *Planner) Plan(durationSeconds int, points []models.ContentPoint) models.ChunkPlan {
	minutes := p.TotalMinutes(durationSeconds)
	chunked := p.NeedsChunking(durationSeconds)

	chunkCount := 1
	if chunked {
		chunkCount = (minutes + p.cfg.MinutesPerChunk - 1) / p.cfg.MinutesPerChunk
		if chunkCount < 2 {
			chunkCount = 2
		}
	}

	perChunkMinutes := float64(minutes) / float64(chunkCount)
	minWords := int(math.Ceil(perChunkMinutes*float64(p.cfg.WordsPerMinute)*p.cfg.ChunkBuffer - 1e-9))

	return models.ChunkPlan{
		TotalMinutes:     minutes,
		Chunked:          chunked,
		ChunkCount:       chunkCount,
		MinWordsPerChunk: minWords,
		ExpectedWords:    minutes * p.cfg.WordsPerMinute,
		Ranges:           PartitionPoints(points, chunkCount),
	}
}

// PartitionPoints splits points into k contiguous, non-overlapping half-open ranges
// covering every point. With fewer points than chunks some ranges are empty.
// Otherwise boundaries follow cumulative duration and every range holds at least one point.
func PartitionPoints(points []models.ContentPoint, k int) []models.PointRange {
	if k < 1 {
		k = 1
	}
	n := len(points)
	ranges := make([]models.PointRange, k)

	if n < k {
		for c := 0; c < k; c++ {
			ranges[c] = models.PointRange{Start: c * n / k, End: (c + 1) * n / k}
		}
		return ranges
	}

	weights := make([]float64, n)
	useDurations := true
	for _, p := range points {
		if p.DurationSeconds <= 0 {
			useDurations = false
			break
		}
	}
	for i, p := range points {
		if useDurations {
			weights[i] = float64(p.DurationSeconds)
		} else {
			weights[i] = 1
		}
	}

	prefix := make([]float64, n+1)
	for i, w := range weights {
		prefix[i+1] = prefix[i] + w
	}
	total := prefix[n]

	start := 0
	for c := 0; c < k-1; c++ {
		target := total * float64(c+1) / float64(k)
		minEnd := start + 1
		maxEnd := n - (k - 1 - c)

		end := minEnd
		best := absFloat(prefix[end] - target)
		for e := minEnd + 1; e <= maxEnd; e++ {
			if d := absFloat(prefix[e] - target); d < best {
				best = d
				end = e
			}
		}

		ranges[c] = models.PointRange{Start: start, End: end}
		start = end
	}
	ranges[k-1] = models.PointRange{Start: start, End: n}

	return ranges
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
