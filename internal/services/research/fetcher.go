package research

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
)

// maxParallelFetches bounds concurrent source fetches per request
const maxParallelFetches = 4

// Fetcher fills research source content from URLs and uploaded documents
type Fetcher struct {
	client      *http.Client
	transformer interfaces.ContentTransformer
	pdf         PDFTextExtractor
	config      *common.ResearchConfig
	timeout     time.Duration
	logger      arbor.ILogger
}

// PDFTextExtractor reads PDFs from storage or raw bytes
type PDFTextExtractor interface {
	interfaces.PDFExtractor
	ExtractTextFromBytes(ctx context.Context, content []byte) (string, error)
}

var _ interfaces.ResearchFetcher = (*Fetcher)(nil)

// NewFetcher creates a research fetcher. client may be nil.
func NewFetcher(client *http.Client, transformer interfaces.ContentTransformer, pdf PDFTextExtractor, config *common.ResearchConfig, logger arbor.ILogger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client:      client,
		transformer: transformer,
		pdf:         pdf,
		config:      config,
		timeout:     common.ParseDurationOr(config.FetchTimeout, 20*time.Second),
		logger:      logger,
	}
}

// Hydrate returns a copy of sources with Content filled where it was missing or thin
func (f *Fetcher) Hydrate(ctx context.Context, sources []models.Source) []models.Source {
	out := make([]models.Source, len(sources))
	copy(out, sources)

	sem := make(chan struct{}, maxParallelFetches)
	var wg sync.WaitGroup

	for i := range out {
		if !f.needsFetch(out[i]) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		s := &out[i]
		common.SafeGo(f.logger, "research fetch", func() {
			defer wg.Done()
			defer func() { <-sem }()

			content, err := f.fetch(ctx, *s)
			if err != nil {
				f.logger.Warn().
					Str("title", s.Title).
					Str("url", s.URL).
					Str("document_key", s.DocumentKey).
					Err(err).
					Msg("Research source fetch failed")
				return
			}
			if len(strings.TrimSpace(content)) > len(strings.TrimSpace(s.Content)) {
				s.Content = content
			}
		})
	}
	wg.Wait()

	return out
}

func (f *Fetcher) needsFetch(s models.Source) bool {
	if s.ContentAlreadyFetched || s.Synthesized {
		return false
	}
	if s.URL == "" && s.DocumentKey == "" {
		return false
	}
	return len(strings.TrimSpace(s.Content)) <= f.config.SubstantiveMinChars
}

func (f *Fetcher) fetch(ctx context.Context, s models.Source) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if s.DocumentKey != "" {
		if f.pdf == nil {
			return "", fmt.Errorf("no PDF extractor configured")
		}
		return f.pdf.ExtractText(ctx, s.DocumentKey)
	}
	return f.fetchURL(ctx, s.URL)
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	limit := int64(f.config.MaxFetchBytes)
	if limit <= 0 {
		limit = 5 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf":
		if f.pdf == nil {
			return "", fmt.Errorf("no PDF extractor configured")
		}
		return f.pdf.ExtractTextFromBytes(ctx, body)
	case mediaType == "text/plain" || mediaType == "text/markdown":
		return string(body), nil
	default:
		return f.transformer.HTMLToMarkdown(string(body), url)
	}
}
