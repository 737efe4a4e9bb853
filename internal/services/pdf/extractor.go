// -----------------------------------------------------------------------
// PDF Extractor - Read the embedded text layer of PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

var pageFileRegex = regexp.MustCompile(`page_(\d+)`)

// NewExtractor creates a new PDF extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "yojana-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// Extract returns the text of every page. pdfcpu only exposes raw content
// streams, so text-showing operators are decoded from each page stream.
// Pages whose fonts use custom encodings come back empty or garbled.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*interfaces.PDFExtractionResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}

	workDir, err := os.MkdirTemp(e.tempDir, "extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, "document.pdf")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts, err := readPageStreams(outDir)
	if err != nil {
		return nil, err
	}

	result := &interfaces.PDFExtractionResult{
		PageCount: pageCount,
		Pages:     make([]interfaces.PDFPageContent, 0, pageCount),
	}

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		result.Pages = append(result.Pages, interfaces.PDFPageContent{
			PageNumber: pageNum,
			Text:       text,
		})
		if text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}
	result.FullText = fullText.String()

	e.logger.Debug().
		Int("page_count", pageCount).
		Int("text_length", len(result.FullText)).
		Msg("PDF text layer extracted")

	return result, nil
}

// readPageStreams decodes every extracted content file, keyed by page number.
// A page may have several content streams; they are concatenated in name order.
func readPageStreams(dir string) (map[int]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	pageTexts := make(map[int]string)
	for _, name := range names {
		match := pageFileRegex.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		pageNum, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		text := DecodeContentStream(content)
		if existing := pageTexts[pageNum]; existing != "" && text != "" {
			text = existing + "\n" + text
		} else if text == "" {
			text = existing
		}
		pageTexts[pageNum] = text
	}
	return pageTexts, nil
}
