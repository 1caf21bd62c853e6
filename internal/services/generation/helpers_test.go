package generation

import (
	"fmt"
	"strings"

	"github.com/ternarybob/longform/internal/common"
)

// words returns text with exactly n words
func words(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSpace(strings.Repeat("narration ", n))
}

var realTags = []string{"history", "science", "space", "rockets", "engineering", "apollo", "moon landing", "nasa", "documentary", "education", "physics", "exploration"}

// trailer renders Description and Tags sections with the given number of tags
func trailer(tagCount int) string {
	return fmt.Sprintf("\n\n## Description\nA look at how the moon landing happened.\n00:00 Intro\n03:10 Launch\n\n## Tags\n%s\n",
		strings.Join(realTags[:tagCount], ", "))
}

// scriptWithWords builds a complete script whose total word count is exactly total
func scriptWithWords(total, tagCount int) string {
	tail := trailer(tagCount)
	return words(total-CountWords(tail)) + tail
}

func testConfig() *common.Config {
	return common.NewDefaultConfig()
}
