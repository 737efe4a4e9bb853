package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/models"
)

func newBuilder() *Builder {
	return NewBuilder(&common.FallbackConfig{
		URL:  "https://sevasindhu.karnataka.gov.in",
		Name: "Seva Sindhu",
	}, arbor.NewLogger())
}

func retrieved() []models.RetrievedChunk {
	doc := &models.Document{
		ID:              "doc_1",
		Title:           "Gruha Lakshmi Guidelines",
		SourceURL:       "https://example.gov.in/gruha-lakshmi.pdf",
		ReferenceNumber: "WCD 123 2023",
	}
	return []models.RetrievedChunk{
		{
			Chunk:         &models.Chunk{ID: "chk_1", DocumentID: "doc_1", Text: "Eligible women heads of household receive ₹2,000 per month.", Section: "Benefits", Page: 2},
			Document:      doc,
			SemanticScore: 0.91,
		},
		{
			Chunk:         &models.Chunk{ID: "chk_2", DocumentID: "doc_1", Text: "Apply through Seva Sindhu with Aadhaar and ration card.", Section: "How to apply", Page: 3},
			Document:      doc,
			SemanticScore: 0.78,
		},
	}
}

func TestBuild_Order(t *testing.T) {
	b := newBuilder()
	prompt := b.Build("How much does Gruha Lakshmi pay?", retrieved(), "kn")

	instructions := strings.Index(prompt, "Answer ONLY from the numbered sources")
	source1 := strings.Index(prompt, "[1] Gruha Lakshmi Guidelines — Benefits — Page 2 — Ref WCD 123 2023")
	source2 := strings.Index(prompt, "[2] Gruha Lakshmi Guidelines — How to apply — Page 3")
	question := strings.Index(prompt, "How much does Gruha Lakshmi pay?")
	language := strings.Index(prompt, "Respond in Kannada")
	reminder := strings.Index(prompt, "Cite every fact")

	for _, idx := range []int{instructions, source1, source2, question, language, reminder} {
		require.GreaterOrEqual(t, idx, 0)
	}
	assert.Less(t, instructions, source1)
	assert.Less(t, source1, source2)
	assert.Less(t, source2, question)
	assert.Less(t, question, language)
	assert.Less(t, language, reminder)
	assert.Contains(t, prompt, "₹2,000 per month")
	assert.Contains(t, prompt, "https://sevasindhu.karnataka.gov.in")
}

func TestBuild_EnglishHasNoLanguageLine(t *testing.T) {
	prompt := newBuilder().Build("question", retrieved(), "en")
	assert.NotContains(t, prompt, "Respond in")

	prompt = newBuilder().Build("question", retrieved(), "")
	assert.NotContains(t, prompt, "Respond in")
}

func TestSourceHeader_OmitsEmptyParts(t *testing.T) {
	c := models.RetrievedChunk{Chunk: &models.Chunk{Text: "x"}}
	assert.Equal(t, "[3] Untitled source", sourceHeader(3, c))

	c.Document = &models.Document{Title: "FAQ"}
	assert.Equal(t, "[1] FAQ", sourceHeader(1, c))
}

func TestExtractCitations(t *testing.T) {
	b := newBuilder()
	response := "You receive ₹2,000 per month [1]. Apply online [2]. As noted in [1], verify first. [7] is bogus, [0] too."

	citations := b.ExtractCitations(response, retrieved())
	require.Len(t, citations, 2)

	assert.Equal(t, 1, citations[0].Number)
	assert.Equal(t, "chk_1", citations[0].ChunkID)
	assert.Equal(t, "doc_1", citations[0].DocumentID)
	assert.Equal(t, "Gruha Lakshmi Guidelines", citations[0].DocumentTitle)
	assert.Equal(t, "https://example.gov.in/gruha-lakshmi.pdf", citations[0].SourceURL)
	assert.Equal(t, "WCD 123 2023", citations[0].ReferenceNumber)
	assert.Equal(t, 2, citations[0].Page)
	assert.Equal(t, 0.91, citations[0].Score)

	assert.Equal(t, 2, citations[1].Number)
}

func TestExtractCitations_FirstAppearanceOrder(t *testing.T) {
	citations := newBuilder().ExtractCitations("See [2] and then [1].", retrieved())
	require.Len(t, citations, 2)
	assert.Equal(t, 2, citations[0].Number)
	assert.Equal(t, 1, citations[1].Number)
}

func TestExtractCitations_None(t *testing.T) {
	citations := newBuilder().ExtractCitations("No markers here.", retrieved())
	assert.NotNil(t, citations)
	assert.Empty(t, citations)
}

func TestExcerpt_Truncates(t *testing.T) {
	long := strings.Repeat("ಯೋಜನೆ ", 100)
	e := Excerpt(long)
	assert.LessOrEqual(t, len([]rune(e)), MaxExcerptRunes)
	assert.True(t, strings.HasSuffix(e, "..."))

	assert.Equal(t, "short text", Excerpt("  short \n text "))
}

func TestEnsureLanguage(t *testing.T) {
	b := newBuilder()

	english := "Eligible women receive ₹2,000 per month [1]."
	assert.Equal(t, english, b.EnsureLanguage(english, "en"))
	assert.Equal(t, english, b.EnsureLanguage(english, ""))

	kannada := "ಅರ್ಹ ಮಹಿಳೆಯರಿಗೆ ತಿಂಗಳಿಗೆ ₹2,000 ಸಿಗುತ್ತದೆ [1]."
	assert.Equal(t, kannada, b.EnsureLanguage(kannada, "kn"))

	flagged := b.EnsureLanguage(english, "kn")
	assert.True(t, strings.HasPrefix(flagged, "Note: an answer in Kannada"))
	assert.True(t, strings.HasSuffix(flagged, english))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", LanguageName("en"))
	assert.Equal(t, "Hindi (हिन्दी)", LanguageName("hi"))
	assert.Equal(t, "xx", LanguageName("xx"))
}
