// Package extraction turns uploaded files into text with a native tier and
// an OCR fallback tier.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

const maxStatusErrors = 3

type contentKind int

const (
	kindUnknown contentKind = iota
	kindPDF
	kindHTML
	kindMarkdown
	kindPlain
)

// Extractor implements interfaces.TextExtractor
type Extractor struct {
	pdf          interfaces.PDFExtractor
	ocr          interfaces.OCRService // nil when OCR is disabled
	quota        interfaces.QuotaService
	config       *common.IngestionConfig
	languages    []string
	pollInterval time.Duration
	ocrTimeout   time.Duration
	logger       arbor.ILogger
}

var _ interfaces.TextExtractor = (*Extractor)(nil)

// NewExtractor creates a tiered extractor. ocr may be nil.
func NewExtractor(
	pdf interfaces.PDFExtractor,
	ocr interfaces.OCRService,
	quota interfaces.QuotaService,
	config *common.IngestionConfig,
	ocrConfig *common.OCRConfig,
	logger arbor.ILogger,
) *Extractor {
	return &Extractor{
		pdf:          pdf,
		ocr:          ocr,
		quota:        quota,
		config:       config,
		languages:    ocrConfig.Languages,
		pollInterval: common.ParseDurationOr(ocrConfig.PollInterval, 3*time.Second),
		ocrTimeout:   common.ParseDurationOr(ocrConfig.Timeout, 5*time.Minute),
		logger:       logger,
	}
}

// Extract tries native extraction first and accepts it when it yields at
// least MinNativeChars runes. Otherwise the document goes to OCR.
func (e *Extractor) Extract(ctx context.Context, req models.ExtractRequest) (*models.Extraction, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file %s", models.ErrExtractionFailed, req.Filename)
	}

	kind := detectKind(req)

	native, nativeErr := e.extractNative(ctx, kind, req)
	if nativeErr == nil {
		length := utf8.RuneCountInString(strings.TrimSpace(native.Text))
		if length >= e.config.MinNativeChars {
			e.finish(native)
			e.logger.Info().
				Str("filename", req.Filename).
				Str("method", string(native.Method)).
				Int("length", length).
				Str("language", native.Language).
				Msg("Native extraction accepted")
			return native, nil
		}
		nativeErr = fmt.Errorf("native text too short: %d runes (minimum %d)", length, e.config.MinNativeChars)
	}

	e.logger.Debug().
		Err(nativeErr).
		Str("filename", req.Filename).
		Msg("Native extraction insufficient, falling back to OCR")

	ocrResult, ocrErr := e.extractOCR(ctx, req)
	if ocrErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Error().
			Str("filename", req.Filename).
			Str("native_error", nativeErr.Error()).
			Str("ocr_error", ocrErr.Error()).
			Msg("Both extraction tiers failed")
		return nil, fmt.Errorf("%w: native: %v; ocr: %w", models.ErrExtractionFailed, nativeErr, ocrErr)
	}

	if native != nil && native.Title != "" && ocrResult.Title == "" {
		ocrResult.Title = native.Title
	}
	e.finish(ocrResult)
	return ocrResult, nil
}

func (e *Extractor) finish(extraction *models.Extraction) {
	extraction.Text = strings.TrimSpace(extraction.Text)
	if extraction.PageCount <= 0 {
		extraction.PageCount = 1
	}
	extraction.Language = common.ClassifyLanguage(extraction.Text, e.config.TargetLanguage, e.config.DefaultLanguage)
}

func (e *Extractor) extractNative(ctx context.Context, kind contentKind, req models.ExtractRequest) (*models.Extraction, error) {
	result := &models.Extraction{
		Method:     models.ExtractionNative,
		Confidence: 1.0,
		PageCount:  1,
	}

	switch kind {
	case kindPDF:
		if e.pdf == nil {
			return nil, fmt.Errorf("no PDF extractor configured")
		}
		pdfResult, err := e.pdf.Extract(ctx, req.Data)
		if err != nil {
			return nil, err
		}
		result.Text = pdfResult.FullText
		result.Format = models.FormatPlain
		result.PageCount = pdfResult.PageCount

	case kindHTML:
		if !utf8.Valid(req.Data) {
			return nil, fmt.Errorf("HTML is not valid UTF-8")
		}
		markdown, title, err := htmlToMarkdown(string(req.Data))
		if err != nil {
			return nil, err
		}
		result.Text = markdown
		result.Title = title
		result.Format = models.FormatMarkdown

	case kindMarkdown, kindPlain:
		if !utf8.Valid(req.Data) {
			return nil, fmt.Errorf("text is not valid UTF-8")
		}
		result.Text = string(req.Data)
		result.Format = models.FormatPlain
		if kind == kindMarkdown {
			result.Format = models.FormatMarkdown
		}

	default:
		return nil, fmt.Errorf("no native extractor for %s", req.Filename)
	}

	return result, nil
}

func (e *Extractor) extractOCR(ctx context.Context, req models.ExtractRequest) (*models.Extraction, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("OCR is disabled")
	}

	if status := e.quota.Check(ctx, models.ServiceOCR); !status.Allowed {
		return nil, fmt.Errorf("ocr: %w", models.ErrQuotaExhausted)
	}

	languages := req.LanguageHints
	if len(languages) == 0 {
		languages = e.languages
	}

	jobID, err := e.ocr.Submit(ctx, req.Filename, req.Data, languages)
	if err != nil {
		return nil, err
	}

	if err := e.waitForJob(ctx, jobID); err != nil {
		return nil, err
	}

	result, err := e.ocr.Result(ctx, jobID)
	if err != nil {
		return nil, err
	}

	e.quota.Record(ctx, models.ServiceOCR, models.UsageOCRCredits, result.CreditsUsed)

	e.logger.Info().
		Str("filename", req.Filename).
		Str("job_id", jobID).
		Int("page_count", result.PageCount).
		Float64("credits_used", result.CreditsUsed).
		Msg("OCR extraction completed")

	return &models.Extraction{
		Text:        result.Markdown,
		Format:      models.FormatMarkdown,
		Method:      models.ExtractionOCR,
		Confidence:  e.config.OCRConfidence,
		PageCount:   result.PageCount,
		CreditsUsed: result.CreditsUsed,
	}, nil
}

// waitForJob polls the job every pollInterval until it leaves PENDING or ocrTimeout elapses
func (e *Extractor) waitForJob(ctx context.Context, jobID string) error {
	pollCtx, cancel := context.WithTimeout(ctx, e.ocrTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	statusErrors := 0
	for {
		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("job %s after %s: %w", jobID, e.ocrTimeout, models.ErrOCRTimeout)
		case <-ticker.C:
		}

		status, err := e.ocr.Status(pollCtx, jobID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			statusErrors++
			e.logger.Warn().Err(err).Str("job_id", jobID).Int("consecutive_errors", statusErrors).Msg("OCR status poll failed")
			if statusErrors >= maxStatusErrors {
				return fmt.Errorf("polling job %s: %w", jobID, err)
			}
			continue
		}
		statusErrors = 0

		switch status {
		case interfaces.OCRJobSuccess:
			return nil
		case interfaces.OCRJobError, interfaces.OCRJobCancelled:
			return fmt.Errorf("job %s ended with status %s: %w", jobID, status, models.ErrOCRJobFailed)
		}
	}
}

// detectKind resolves the content type from the declared MIME type, the
// file extension, and finally the leading bytes.
func detectKind(req models.ExtractRequest) contentKind {
	contentType := strings.ToLower(req.ContentType)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	switch contentType {
	case "application/pdf":
		return kindPDF
	case "text/html", "application/xhtml+xml":
		return kindHTML
	case "text/markdown", "text/x-markdown":
		return kindMarkdown
	case "text/plain":
		return kindPlain
	}

	switch strings.ToLower(filepath.Ext(req.Filename)) {
	case ".pdf":
		return kindPDF
	case ".html", ".htm":
		return kindHTML
	case ".md", ".markdown":
		return kindMarkdown
	case ".txt", ".text":
		return kindPlain
	}

	sniffed := http.DetectContentType(req.Data)
	switch {
	case strings.HasPrefix(sniffed, "application/pdf"):
		return kindPDF
	case strings.HasPrefix(sniffed, "text/html"):
		return kindHTML
	case strings.HasPrefix(sniffed, "text/plain"):
		return kindPlain
	}
	return kindUnknown
}
