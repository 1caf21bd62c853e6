package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/interfaces"
)

// boilerplateSelector lists page chrome that never carries research content
const boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, .advertisement, .ad, .cookie-banner, .newsletter, .share, .related"

// mainContentSelector is tried in order to find the article body
var mainContentSelectors = []string{"article", "main", "[role=main]", ".post-content", ".entry-content", ".article-body", "#content", ".content"}

// Service converts fetched web pages into markdown research text
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.ContentTransformer = (*Service)(nil)

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown extracts the main content of a page and converts it to markdown.
// baseURL is used for resolving relative links.
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	body, err := MainContent(html)
	if err != nil {
		s.logger.Warn().Err(err).Str("base_url", baseURL).Msg("Main content extraction failed, converting whole page")
		body = html
	}

	converter := newConverter(baseURL)
	converted, err := converter.ConvertString(body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return stripHTMLTags(body), nil
	}

	converted = cleanMarkdown(converted)
	if converted == "" {
		s.logger.Warn().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, applying fallback")
		return stripHTMLTags(body), nil
	}

	s.logger.Debug().
		Int("markdown_length", len(converted)).
		Int("html_length", len(html)).
		Str("base_url", baseURL).
		Msg("Converted research page to markdown")

	return converted, nil
}

// newConverter builds a converter whose links and images resolve against the page URL.
// The library's own resolution only knows a host and always assumes http.
func newConverter(pageURL string) *md.Converter {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || base.Host == "" {
		return md.NewConverter(md.DomainFromURL(pageURL), true, nil)
	}

	return md.NewConverter(base.Host, true, &md.Options{
		GetAbsoluteURL: func(_ *goquery.Selection, rawURL string, _ string) string {
			ref, err := url.Parse(strings.TrimSpace(rawURL))
			if err != nil || ref.Scheme == "data" {
				return rawURL
			}
			return base.ResolveReference(ref).String()
		},
	})
}

// MainContent returns the HTML of the page's article body with boilerplate removed
func MainContent(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(boilerplateSelector).Remove()

	for _, selector := range mainContentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 && len(strings.TrimSpace(sel.Text())) > 200 {
			return goquery.OuterHtml(sel)
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return doc.Html()
	}
	return body.Html()
}

// Title returns the page title, preferring og:title
func Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRe      = regexp.MustCompile(`\s+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// stripHTMLTags removes basic HTML tags for fallback cases
func stripHTMLTags(htmlStr string) string {
	stripped := tagRe.ReplaceAllString(htmlStr, " ")
	cleaned := spaceRe.ReplaceAllString(stripped, " ")

	cleaned = strings.ReplaceAll(cleaned, "&amp;", "&")
	cleaned = strings.ReplaceAll(cleaned, "&lt;", "<")
	cleaned = strings.ReplaceAll(cleaned, "&gt;", ">")
	cleaned = strings.ReplaceAll(cleaned, "&quot;", "\"")
	cleaned = strings.ReplaceAll(cleaned, "&#39;", "'")
	cleaned = strings.ReplaceAll(cleaned, "&nbsp;", " ")

	return strings.TrimSpace(cleaned)
}

func cleanMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
