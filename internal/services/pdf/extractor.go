// -----------------------------------------------------------------------
// PDF Extractor - text from uploaded research documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/interfaces"
)

// DocumentPrefix is the KV key prefix under which uploaded PDFs are stored
const DocumentPrefix = "document:"

// Extractor implements interfaces.PDFExtractor over KV-stored PDFs
type Extractor struct {
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor
func NewExtractor(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Extractor {
	return &Extractor{
		kvStorage: kvStorage,
		logger:    logger,
	}
}

// StoreDocument saves PDF bytes under key as base64
func (e *Extractor) StoreDocument(ctx context.Context, key string, content []byte, description string) error {
	if !strings.HasPrefix(key, DocumentPrefix) {
		key = DocumentPrefix + key
	}
	return e.kvStorage.Set(ctx, key, base64.StdEncoding.EncodeToString(content), description)
}

// ExtractText extracts all text content from a PDF stored at the given storage key
func (e *Extractor) ExtractText(ctx context.Context, storageKey string) (string, error) {
	content, err := e.load(ctx, storageKey)
	if err != nil {
		return "", err
	}
	return e.ExtractTextFromBytes(ctx, content)
}

// ExtractTextFromBytes extracts page text from PDF bytes in page order
func (e *Extractor) ExtractTextFromBytes(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContext(bytes.NewReader(content), conf)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}

	outDir, err := os.MkdirTemp("", "longform-pdf-")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContent(bytes.NewReader(content), outDir, "doc", nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pages, err := readPages(outDir)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, page := range pages {
		text := ContentStreamText(page.raw)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			fmt.Fprintf(&builder, "\n\n--- Page %d ---\n\n", page.number)
		}
		builder.WriteString(text)
	}

	e.logger.Debug().
		Int("page_count", pdfCtx.PageCount).
		Int("text_length", builder.Len()).
		Msg("Extracted PDF text")

	return builder.String(), nil
}

func (e *Extractor) load(ctx context.Context, storageKey string) ([]byte, error) {
	content, err := e.kvStorage.Get(ctx, storageKey)
	if err != nil && !strings.HasPrefix(storageKey, DocumentPrefix) {
		content, err = e.kvStorage.Get(ctx, DocumentPrefix+storageKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get PDF from storage key %s: %w", storageKey, err)
	}

	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		// stored as raw bytes
		return []byte(content), nil
	}
	return decoded, nil
}

type pageContent struct {
	number int
	raw    string
}

var pageFileRegex = regexp.MustCompile(`_(?:Content_)?page_(\d+)`)

func readPages(dir string) ([]pageContent, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted pages: %w", err)
	}

	var pages []pageContent
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		m := pageFileRegex.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		var number int
		fmt.Sscanf(m[1], "%d", &number)
		raw, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		pages = append(pages, pageContent{number: number, raw: string(raw)})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, nil
}

var (
	textShowRegex  = regexp.MustCompile(`\((?:\\.|[^\\)])*\)\s*(?:Tj|')|\[(?:[^\]]*)\]\s*TJ|T\*|ET`)
	literalRegex   = regexp.MustCompile(`\((?:\\.|[^\\)])*\)`)
	escapeReplacer = strings.NewReplacer(`\n`, "\n", `\r`, "", `\t`, " ", `\(`, "(", `\)`, ")", `\\`, `\`)
)

// ContentStreamText pulls the literal strings shown by Tj/TJ operators out of a page content stream
func ContentStreamText(stream string) string {
	var b strings.Builder
	for _, op := range textShowRegex.FindAllString(stream, -1) {
		switch {
		case op == "T*" || op == "ET":
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
		default:
			for _, lit := range literalRegex.FindAllString(op, -1) {
				b.WriteString(escapeReplacer.Replace(lit[1 : len(lit)-1]))
			}
			if strings.HasSuffix(op, "'") {
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(spaceCollapse.ReplaceAllString(b.String(), " "))
}

var spaceCollapse = regexp.MustCompile(`[ \t]+`)
