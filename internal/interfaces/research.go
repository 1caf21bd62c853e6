package interfaces

import (
	"context"

	"github.com/ternarybob/longform/internal/models"
)

// ResearchFetcher fills source content that was not fetched upstream
type ResearchFetcher interface {
	// Hydrate returns a copy of sources with Content populated where possible.
	// Sources with ContentAlreadyFetched are returned unchanged. Fetch failures
	// leave the source as-is; adequacy checks decide whether that matters.
	Hydrate(ctx context.Context, sources []models.Source) []models.Source
}

// PDFExtractor extracts text from PDFs stored in KV storage
type PDFExtractor interface {
	ExtractText(ctx context.Context, storageKey string) (string, error)
}

// ContentTransformer converts fetched HTML into markdown research text
type ContentTransformer interface {
	HTMLToMarkdown(html string, baseURL string) (string, error)
}
