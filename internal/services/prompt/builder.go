// Package prompt assembles grounded generation prompts and checks what comes back.
package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/models"
)

// MaxExcerptRunes caps citation excerpts
const MaxExcerptRunes = 200

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// Builder renders prompts and validates responses
type Builder struct {
	fallbackURL  string
	fallbackName string
	logger       arbor.ILogger
}

// NewBuilder creates a builder that points citizens at the fallback resource
func NewBuilder(fallback *common.FallbackConfig, logger arbor.ILogger) *Builder {
	name := fallback.Name
	if name == "" {
		name = "the official portal"
	}
	return &Builder{
		fallbackURL:  fallback.URL,
		fallbackName: name,
		logger:       logger,
	}
}

// Build assembles instructions, numbered sources, the question, an optional
// language line and the closing reminder, in that order.
func (b *Builder) Build(query string, chunks []models.RetrievedChunk, language string) string {
	var sb strings.Builder

	sb.WriteString(systemInstructions)
	sb.WriteString("\n\nSOURCES\n")
	for i, c := range chunks {
		sb.WriteString("\n")
		sb.WriteString(sourceHeader(i+1, c))
		sb.WriteString("\n")
		if c.Chunk != nil {
			sb.WriteString(strings.TrimSpace(c.Chunk.Text))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nQUESTION\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	if language != "" && language != "en" {
		fmt.Fprintf(&sb, "Respond in %s.\n\n", LanguageName(language))
	}

	fmt.Fprintf(&sb, closingReminder, b.fallbackName, b.fallbackURL)
	return sb.String()
}

// sourceHeader renders "[n] Title — Section — Page p — Ref r", omitting empty parts
func sourceHeader(n int, c models.RetrievedChunk) string {
	parts := []string{}
	if c.Document != nil && c.Document.Title != "" {
		parts = append(parts, c.Document.Title)
	}
	if c.Chunk != nil {
		if c.Chunk.Section != "" {
			parts = append(parts, c.Chunk.Section)
		}
		if c.Chunk.Page > 0 {
			parts = append(parts, "Page "+strconv.Itoa(c.Chunk.Page))
		}
	}
	if c.Document != nil && c.Document.ReferenceNumber != "" {
		parts = append(parts, "Ref "+c.Document.ReferenceNumber)
	}
	if len(parts) == 0 {
		parts = append(parts, "Untitled source")
	}
	return fmt.Sprintf("[%d] %s", n, strings.Join(parts, " — "))
}

// ExtractCitations maps each distinct [n] in response, in order of first
// appearance, to the nth chunk. Numbers outside the chunk range are ignored.
func (b *Builder) ExtractCitations(response string, chunks []models.RetrievedChunk) []models.Citation {
	citations := []models.Citation{}
	seen := make(map[int]bool)

	for _, m := range citationMarker.FindAllStringSubmatch(response, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(chunks) || seen[n] {
			continue
		}
		seen[n] = true

		c := chunks[n-1]
		if c.Chunk == nil {
			continue
		}
		citation := models.Citation{
			Number:     n,
			ChunkID:    c.Chunk.ID,
			DocumentID: c.Chunk.DocumentID,
			Excerpt:    Excerpt(c.Chunk.Text),
			Page:       c.Chunk.Page,
			Section:    c.Chunk.Section,
			Score:      c.SemanticScore,
		}
		if c.Document != nil {
			citation.DocumentID = c.Document.ID
			citation.DocumentTitle = c.Document.Title
			citation.SourceURL = c.Document.SourceURL
			citation.ReferenceNumber = c.Document.ReferenceNumber
		}
		citations = append(citations, citation)
	}
	return citations
}

// Excerpt collapses whitespace and caps text at MaxExcerptRunes
func Excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= MaxExcerptRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:MaxExcerptRunes-3])) + "..."
}

// EnsureLanguage prefixes a notice when a non-English answer was requested
// but less than 10% of the response is in that language's script.
func (b *Builder) EnsureLanguage(response, language string) string {
	if language == "" || language == "en" || !common.SupportedScript(language) {
		return response
	}
	if common.ScriptRatio(response, language) >= common.MixedScriptRatio {
		return response
	}

	b.logger.Warn().Str("language", language).Msg("Response not in requested language")
	return fmt.Sprintf(unavailableNotice, LanguageName(language)) + response
}
