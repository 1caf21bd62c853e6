package generation

import (
	"strings"

	"github.com/ternarybob/longform/internal/models"
)

// CheckBoundaries scans a chunk's headings for topics owned by other chunks.
// Findings are advisory and never reject a chunk.
func CheckBoundaries(chunk string, pastTitles, futureTitles []string) []models.BoundaryViolation {
	var violations []models.BoundaryViolation
	for _, h := range ExtractHeadings(chunk) {
		if title, ok := matchTitle(h, futureTitles); ok {
			violations = append(violations, models.BoundaryViolation{Kind: models.BoundaryForwardLeak, Heading: h, MatchedTitle: title})
			continue
		}
		if title, ok := matchTitle(h, pastTitles); ok {
			violations = append(violations, models.BoundaryViolation{Kind: models.BoundaryDuplicate, Heading: h, MatchedTitle: title})
		}
	}
	return violations
}

func matchTitle(h string, titles []string) (string, bool) {
	nh := normalize(h)
	if len(nh) < 3 {
		return "", false
	}
	for _, t := range titles {
		nt := normalize(t)
		if len(nt) < 3 {
			continue
		}
		if nh == nt || strings.Contains(nh, nt) || strings.Contains(nt, nh) {
			return t, true
		}
	}
	return "", false
}

// CheckOutline compares a chunk to its outline section. A key point none of whose
// significant words appear is critical; one with fewer than half present is a minor issue.
func CheckOutline(chunk string, section *models.OutlineSection) []models.OutlineIssue {
	if section == nil {
		return nil
	}

	present := make(map[string]bool)
	for _, w := range strings.Fields(normalize(chunk)) {
		present[w] = true
	}

	required := append(append([]string{}, section.KeyPoints...), section.ContentPoints...)
	var issues []models.OutlineIssue
	for _, point := range required {
		words := significantWords(point)
		if len(words) == 0 {
			continue
		}
		hits := 0
		for _, w := range words {
			if present[w] {
				hits++
			}
		}
		switch {
		case hits == 0:
			issues = append(issues, models.OutlineIssue{Missing: point, Critical: true})
		case hits*2 < len(words):
			issues = append(issues, models.OutlineIssue{Missing: point})
		}
	}
	return issues
}

// CriticalIssues returns the missing points of critical outline issues
func CriticalIssues(issues []models.OutlineIssue) []string {
	var out []string
	for _, issue := range issues {
		if issue.Critical {
			out = append(out, issue.Missing)
		}
	}
	return out
}
