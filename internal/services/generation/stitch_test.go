package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStitch_WordIdentity(t *testing.T) {
	chunks := []string{
		"Opening paragraph about the launch.\n\nSecond paragraph on the crew.\n\nA bridge paragraph into orbit.",
		"A bridge paragraph into orbit.\n\nThe lunar descent began at dawn.",
		"The landing itself.\n\n## Description\nSummary.\n\n## Tags\n" + "history, science",
	}

	result := Stitch(chunks)

	sum := 0
	for _, c := range chunks {
		sum += CountWords(c)
	}
	assert.Equal(t, sum, result.PreDedupLength)
	assert.Equal(t, 5, result.RemovedWords)
	assert.Equal(t, result.PreDedupLength-result.RemovedWords, result.StitchedLength)
	assert.Equal(t, CountWords(result.Text), result.StitchedLength)
	assert.Empty(t, result.Warnings)
}

func TestStitch_NoOverlap(t *testing.T) {
	chunks := []string{words(100), "Fresh start.\n\n" + words(50)}
	result := Stitch(chunks)

	assert.Equal(t, 0, result.RemovedWords)
	assert.Equal(t, 152, result.StitchedLength)
	assert.Contains(t, result.Text, "Fresh start.")
}

func TestStitch_WarnsOnEarlyTrailingSections(t *testing.T) {
	chunks := []string{
		"Intro.\n\n## Tags\nrockets, moon",
		"Ending.",
	}
	result := Stitch(chunks)

	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "chunk 0")
}
