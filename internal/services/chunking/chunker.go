// Package chunking splits extracted document text into token-bounded drafts.
package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	DefaultTargetTokens = 450
	DefaultMinTokens    = 50
)

// Chunker implements interfaces.Chunker
type Chunker struct {
	targetTokens    int
	minTokens       int
	charsPerToken   float64
	defaultLanguage string
	markdown        goldmark.Markdown
	logger          arbor.ILogger
}

var _ interfaces.Chunker = (*Chunker)(nil)

// Option configures the chunker.
type Option func(*Chunker)

// WithTargetTokens sets the preferred chunk size in estimated tokens.
func WithTargetTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.targetTokens = n
		}
	}
}

// WithMinTokens sets the size below which pieces are dropped.
func WithMinTokens(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minTokens = n
		}
	}
}

// WithCharsPerToken sets the token estimation ratio.
func WithCharsPerToken(ratio float64) Option {
	return func(c *Chunker) {
		if ratio > 0 {
			c.charsPerToken = ratio
		}
	}
}

// WithDefaultLanguage sets the language that gets no section tag.
func WithDefaultLanguage(lang string) Option {
	return func(c *Chunker) {
		if lang != "" {
			c.defaultLanguage = lang
		}
	}
}

// NewChunker creates a chunker with the given options.
func NewChunker(logger arbor.ILogger, opts ...Option) *Chunker {
	c := &Chunker{
		targetTokens:    DefaultTargetTokens,
		minTokens:       DefaultMinTokens,
		charsPerToken:   common.DefaultCharsPerToken,
		defaultLanguage: "en",
		markdown:        goldmark.New(),
		logger:          logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.minTokens > c.targetTokens {
		c.minTokens = c.targetTokens
	}

	return c
}

type section struct {
	label string
	body  string
}

// Chunk splits input into drafts stamped with method, estimated page, language and position
func (c *Chunker) Chunk(input models.ChunkInput) []models.ChunkDraft {
	if strings.TrimSpace(input.Text) == "" {
		return []models.ChunkDraft{}
	}

	var pieces []section
	if input.Format == models.FormatMarkdown {
		for _, s := range c.splitSections(input.Text) {
			for _, body := range c.splitOversized(s.body) {
				pieces = append(pieces, section{label: s.label, body: body})
			}
		}
	} else {
		for _, body := range c.splitOversized(input.Text) {
			pieces = append(pieces, section{body: body})
		}
	}

	kept := pieces[:0]
	for _, p := range pieces {
		if c.tokens(p.body) >= c.minTokens && strings.TrimSpace(p.body) != "" {
			kept = append(kept, p)
		}
	}

	pages := input.PageCount
	if pages <= 0 {
		pages = 1
	}

	drafts := make([]models.ChunkDraft, len(kept))
	for i, p := range kept {
		drafts[i] = models.ChunkDraft{
			Text:             p.body,
			Section:          c.sectionLabel(p.label, input.Language),
			Page:             i*pages/len(kept) + 1,
			Language:         input.Language,
			ExtractionMethod: input.ExtractionMethod,
			Position:         i,
			TokenCount:       c.tokens(p.body),
		}
	}

	c.logger.Debug().
		Int("pieces", len(pieces)).
		Int("chunks", len(drafts)).
		Str("format", string(input.Format)).
		Msg("Text chunked")

	return drafts
}

func (c *Chunker) sectionLabel(label, language string) string {
	if language == "" || language == c.defaultLanguage {
		return label
	}
	tag := "[" + language + "]"
	if label == "" {
		return tag
	}
	return label + " " + tag
}

func (c *Chunker) tokens(s string) int {
	return common.EstimateTokens(s, c.charsPerToken)
}

// splitSections cuts markdown at every top-level heading. Text before the
// first heading becomes an unlabelled section.
func (c *Chunker) splitSections(source string) []section {
	src := []byte(source)
	doc := c.markdown.Parser().Parse(text.NewReader(src))

	type boundary struct {
		offset int
		label  string
	}
	var boundaries []boundary

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		start := heading.Lines().At(0).Start
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		boundaries = append(boundaries, boundary{
			offset: start,
			label:  strings.TrimSpace(nodeText(heading, src)),
		})
	}

	var sections []section
	prev, label := 0, ""
	for _, b := range boundaries {
		if body := strings.TrimSpace(source[prev:b.offset]); body != "" {
			sections = append(sections, section{label: label, body: body})
		}
		prev, label = b.offset, b.label
	}
	if body := strings.TrimSpace(source[prev:]); body != "" {
		sections = append(sections, section{label: label, body: body})
	}
	return sections
}

// nodeText concatenates the literal text under an inline container
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(child, source))
		}
	}
	return b.String()
}

// splitOversized returns text unchanged when it fits, otherwise paragraphs
// merged greedily up to the target, with sentence then character splitting
// for single paragraphs that still overflow.
func (c *Chunker) splitOversized(body string) []string {
	body = strings.TrimSpace(body)
	if c.tokens(body) <= c.targetTokens {
		return []string{body}
	}
	return c.mergeGreedy(splitParagraphs(body), "\n\n", c.splitParagraph)
}

func (c *Chunker) splitParagraph(paragraph string) []string {
	return c.mergeGreedy(splitSentences(paragraph), " ", c.splitChars)
}

// splitChars slices on rune boundaries, preferring the last space in each window
func (c *Chunker) splitChars(s string) []string {
	window := int(float64(c.targetTokens) * c.charsPerToken)
	if window <= 0 {
		window = 1
	}

	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		if len(runes) <= window {
			out = append(out, strings.TrimSpace(string(runes)))
			break
		}
		cut := window
		for i := window; i > window/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	return out
}

// mergeGreedy accumulates parts until the next would overflow the target,
// then flushes. A single part that alone overflows is handed to split.
func (c *Chunker) mergeGreedy(parts []string, sep string, split func(string) []string) []string {
	var out []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}

	for _, part := range parts {
		if c.tokens(part) > c.targetTokens {
			flush()
			out = append(out, split(part)...)
			continue
		}
		if current.Len() > 0 && c.tokens(current.String()+sep+part) > c.targetTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()
	return out
}

// splitParagraphs splits on blank lines
func splitParagraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences breaks after ., !, ? or the Devanagari danda when followed by whitespace
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' && r != '।' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(s) {
			nr, _ := utf8.DecodeRuneInString(s[next:])
			if !unicode.IsSpace(nr) {
				continue
			}
		}
		if sentence := strings.TrimSpace(s[start:next]); sentence != "" {
			out = append(out, sentence)
		}
		start = next
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
