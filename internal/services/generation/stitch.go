package generation

import (
	"fmt"
	"regexp"
	"strings"
)

// dedupTailParagraphs is how many trailing paragraphs of a chunk are compared against the next chunk's opening
const dedupTailParagraphs = 3

// StitchResult is the assembled script plus the dedup accounting.
// StitchedLength == PreDedupLength - RemovedWords always holds.
type StitchResult struct {
	Text           string
	PreDedupLength int
	StitchedLength int
	RemovedWords   int
	Warnings       []string
}

var paragraphSplit = regexp.MustCompile(`\n[ \t\r]*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(strings.TrimSpace(text), -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// Stitch joins accepted chunks in order with blank lines. Leading paragraphs of a chunk
// that repeat one of the previous chunk's last paragraphs are dropped and counted in RemovedWords.
func Stitch(chunks []string) StitchResult {
	var result StitchResult
	parts := make([]string, 0, len(chunks))
	var prevTail []string

	for i, chunk := range chunks {
		paragraphs := splitParagraphs(chunk)
		for _, p := range paragraphs {
			result.PreDedupLength += CountWords(p)
		}

		if i > 0 {
			for len(paragraphs) > 0 && containsNormalized(prevTail, paragraphs[0]) {
				result.RemovedWords += CountWords(paragraphs[0])
				paragraphs = paragraphs[1:]
			}
		}

		if i < len(chunks)-1 {
			sections := DetectSections(chunk)
			if sections.HasDescription {
				result.Warnings = append(result.Warnings, fmt.Sprintf("chunk %d contains a Description section before the final chunk", i))
			}
			if sections.HasTags {
				result.Warnings = append(result.Warnings, fmt.Sprintf("chunk %d contains a Tags section before the final chunk", i))
			}
		}

		if len(paragraphs) > 0 {
			parts = append(parts, strings.Join(paragraphs, "\n\n"))
		}

		all := splitParagraphs(chunk)
		start := len(all) - dedupTailParagraphs
		if start < 0 {
			start = 0
		}
		prevTail = all[start:]
	}

	result.Text = strings.Join(parts, "\n\n")
	result.StitchedLength = CountWords(result.Text)
	return result
}

func containsNormalized(haystack []string, paragraph string) bool {
	needle := normalize(paragraph)
	if needle == "" {
		return false
	}
	for _, h := range haystack {
		if normalize(h) == needle {
			return true
		}
	}
	return false
}
