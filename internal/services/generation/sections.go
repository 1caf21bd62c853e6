package generation

import (
	"regexp"
	"strings"

	"github.com/ternarybob/longform/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// heading is a markdown heading located in the source
type heading struct {
	title     string
	level     int
	lineStart int // offset of the first byte of the heading line
	bodyStart int // offset just past the heading line
}

var markdown = goldmark.New()

// parseHeadings returns every markdown heading in document order
func parseHeadings(src []byte) []heading {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var out []heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)

		lineStart := first.Start
		for lineStart > 0 && src[lineStart-1] != '\n' {
			lineStart--
		}
		bodyStart := last.Stop
		if idx := indexByteFrom(src, '\n', bodyStart); idx >= 0 {
			bodyStart = idx + 1
		} else {
			bodyStart = len(src)
		}
		// setext underline belongs to the heading
		if rest := src[bodyStart:]; len(rest) > 0 {
			if nl := indexByteFrom(rest, '\n', 0); isSetextUnderline(rest, nl) {
				if nl < 0 {
					bodyStart = len(src)
				} else {
					bodyStart += nl + 1
				}
			}
		}

		out = append(out, heading{
			title:     strings.TrimSpace(nodeText(h, src)),
			level:     h.Level,
			lineStart: lineStart,
			bodyStart: bodyStart,
		})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func indexByteFrom(b []byte, c byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func isSetextUnderline(rest []byte, nl int) bool {
	line := rest
	if nl >= 0 {
		line = rest[:nl]
	}
	trimmed := strings.TrimSpace(string(line))
	return trimmed != "" && strings.Trim(trimmed, "=-") == ""
}

// nodeText concatenates the literal text beneath n
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

var boldLineRegex = regexp.MustCompile(`(?m)^[ \t]*(?:\*\*|__)([^*_\n]{2,}?)(?:\*\*|__)[ \t]*:?[ \t]*$`)

// ExtractHeadings returns markdown headings plus bold-only lines used as headings
func ExtractHeadings(script string) []string {
	var out []string
	for _, h := range parseHeadings([]byte(script)) {
		if h.title != "" {
			out = append(out, h.title)
		}
	}
	for _, m := range boldLineRegex.FindAllStringSubmatch(script, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// labelLineRegex matches "Tags:", "**Description:**" style label lines, optionally with inline content
var labelLineRegex = regexp.MustCompile(`(?im)^[ \t>]*(?:\*\*|__)?[ \t]*(description|tags|hashtags)[ \t]*(?:\*\*|__)?[ \t]*(?::[ \t]*(?:\*\*|__)?[ \t]*(.*))?$`)

// section is the located body of a trailing section
type section struct {
	found bool
	body  string
}

// findSection locates the last section whose heading or label matches one of keywords
func findSection(script string, keywords ...string) section {
	src := []byte(script)
	headings := parseHeadings(src)

	for i := len(headings) - 1; i >= 0; i-- {
		if !titleMatches(headings[i].title, keywords) {
			continue
		}
		end := len(src)
		if i+1 < len(headings) {
			end = headings[i+1].lineStart
		}
		return section{found: true, body: string(src[headings[i].bodyStart:end])}
	}

	matches := labelLineRegex.FindAllStringSubmatchIndex(script, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		label := strings.ToLower(script[m[2]:m[3]])
		if !titleMatches(label, keywords) {
			continue
		}
		inline := ""
		if m[4] >= 0 {
			inline = strings.TrimSpace(strings.Trim(script[m[4]:m[5]], "*_ \t"))
		}
		end := len(script)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		for _, h := range headings {
			if h.lineStart > m[1] && h.lineStart < end {
				end = h.lineStart
				break
			}
		}
		rest := ""
		if m[1] < end {
			rest = script[m[1]:end]
		}
		return section{found: true, body: strings.TrimSpace(inline + "\n" + rest)}
	}

	return section{}
}

// sectionTitlePrefixes may precede a trailing-section keyword, as in "Video Description"
var sectionTitlePrefixes = map[string]bool{"video": true, "youtube": true}

// titleMatches reports whether title names a trailing section: the keyword alone,
// optionally after one of sectionTitlePrefixes. Narration headings that merely
// contain the word, like "Writing a Job Description", do not match.
func titleMatches(title string, keywords []string) bool {
	words := strings.Fields(normalize(title))
	if len(words) == 2 && sectionTitlePrefixes[words[0]] {
		words = words[1:]
	}
	if len(words) != 1 {
		return false
	}
	for _, k := range keywords {
		if words[0] == k {
			return true
		}
	}
	return false
}

var timestampRegex = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•][ \t]*)?[\(\[]?(?:\d{1,2}:)?\d{1,2}:\d{2}[\)\]]?[ \t]*(?:[-–—:|][ \t]*)?\S`)

var tagPlaceholderRegex = regexp.MustCompile(`(?i)\[[^\]]*\]|<[^>]*>|\btag\s*\d+\b|\.\.\.|…|\btbd\b|\bplaceholder\b`)

// DetectSections finds the Description and Tags sections of a script
func DetectSections(script string) models.DetectedSections {
	var detected models.DetectedSections

	if desc := findSection(script, "description"); desc.found {
		detected.HasDescription = true
		detected.TimestampCount = len(timestampRegex.FindAllString(desc.body, -1))
	}

	if tags := findSection(script, "tags", "hashtags"); tags.found {
		detected.HasTags = true
		body := firstParagraph(tags.body)
		detected.TagsPlaceholder = strings.TrimSpace(body) == "" || tagPlaceholderRegex.MatchString(body)
		detected.Tags = parseTags(body)
	}

	return detected
}

func firstParagraph(body string) string {
	body = strings.TrimSpace(body)
	if idx := strings.Index(body, "\n\n"); idx >= 0 {
		return body[:idx]
	}
	return body
}

// parseTags splits a tags paragraph on commas and line breaks, keeping entries longer than one character
func parseTags(body string) []string {
	body = strings.ReplaceAll(body, "\n", ",")
	var tags []string
	for _, raw := range strings.Split(body, ",") {
		tag := strings.TrimSpace(raw)
		tag = strings.TrimLeft(tag, "-*+•# \t")
		tag = strings.Trim(tag, "\"'`*_ \t.")
		if len([]rune(tag)) > 1 {
			tags = append(tags, tag)
		}
	}
	return tags
}
