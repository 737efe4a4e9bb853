package badger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ternarybob/yojana/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const (
	defaultRRFK = 60.0
	bm25K1      = 1.2
	bm25B       = 0.75
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "of": true,
	"for": true, "to": true, "in": true, "on": true, "and": true, "or": true, "what": true,
	"how": true, "who": true, "which": true, "can": true, "i": true, "my": true, "me": true,
	"do": true, "does": true, "be": true, "it": true, "this": true, "that": true, "with": true,
	"under": true, "by": true, "from": true, "at": true, "as": true, "am": true,
}

type searchCandidate struct {
	chunk    *models.Chunk
	document *models.Document
	semantic float64
	keyword  float64
	terms    map[string]int
	length   int
}

// HybridSearch scores every chunk linked to an active document by cosine
// similarity and BM25 keyword relevance, then fuses the two rankings with
// Reciprocal Rank Fusion: score = 1/(k+semantic_rank) + 1/(k+keyword_rank).
// Chunks without keyword matches only contribute their semantic term.
func (s *ChunkStorage) HybridSearch(ctx context.Context, q models.HybridQuery) ([]models.RetrievedChunk, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("hybrid search requires a query vector")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	k := q.RRFK
	if k <= 0 {
		k = defaultRRFK
	}

	chunkDocs, docs, err := s.activeChunkOwners()
	if err != nil {
		return nil, err
	}
	if len(chunkDocs) == 0 {
		return []models.RetrievedChunk{}, nil
	}

	queryTerms := tokenize(q.Text)
	candidates := make([]*searchCandidate, 0, len(chunkDocs))

	err = s.db.Store().ForEach(badgerhold.Where("ID").Ne(""), func(c *models.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		docIDs, ok := chunkDocs[c.ID]
		if !ok {
			return nil
		}

		cand := &searchCandidate{
			chunk:    c,
			document: resolveDocument(c.DocumentID, docIDs, docs),
			semantic: cosineSimilarity(q.Vector, c.Embedding),
		}
		if len(queryTerms) > 0 {
			cand.terms, cand.length = termFrequencies(c.Text, queryTerms)
		}
		candidates = append(candidates, cand)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search scan failed: %w", err)
	}

	scoreBM25(candidates, queryTerms)

	fused := fuseRankings(candidates, k)

	results := make([]models.RetrievedChunk, 0, limit)
	for _, f := range fused {
		if f.cand.semantic < q.MinSimilarity {
			continue
		}
		results = append(results, models.RetrievedChunk{
			Chunk:         f.cand.chunk,
			Document:      f.cand.document,
			SemanticScore: f.cand.semantic,
			KeywordScore:  f.cand.keyword,
			FinalScore:    f.score,
		})
		if len(results) == limit {
			break
		}
	}

	s.logger.Debug().
		Int("candidates", len(candidates)).
		Int("results", len(results)).
		Float64("min_similarity", q.MinSimilarity).
		Msg("Hybrid search completed")

	return results, nil
}

// activeChunkOwners maps chunk ID to the IDs of active, complete documents linking it
func (s *ChunkStorage) activeChunkOwners() (map[string][]string, map[string]*models.Document, error) {
	var docs []models.Document
	query := badgerhold.Where("Active").Eq(true).And("Status").Eq(models.DocumentStatusComplete)
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, nil, fmt.Errorf("failed to load active documents: %w", err)
	}

	docByID := make(map[string]*models.Document, len(docs))
	ids := make([]interface{}, 0, len(docs))
	for i := range docs {
		docByID[docs[i].ID] = &docs[i]
		ids = append(ids, docs[i].ID)
	}
	if len(ids) == 0 {
		return map[string][]string{}, docByID, nil
	}

	var links []models.DocumentChunk
	if err := s.db.Store().Find(&links, badgerhold.Where("DocumentID").In(ids...).Index("DocumentID")); err != nil {
		return nil, nil, fmt.Errorf("failed to load document links: %w", err)
	}

	owners := make(map[string][]string, len(links))
	for _, l := range links {
		owners[l.ChunkID] = append(owners[l.ChunkID], l.DocumentID)
	}
	return owners, docByID, nil
}

// resolveDocument prefers the owning document, falling back to the first active linker
func resolveDocument(ownerID string, linked []string, docs map[string]*models.Document) *models.Document {
	if doc, ok := docs[ownerID]; ok {
		return doc
	}
	sort.Strings(linked)
	for _, id := range linked {
		if doc, ok := docs[id]; ok {
			return doc
		}
	}
	return nil
}

type fusedCandidate struct {
	cand  *searchCandidate
	score float64
}

func fuseRankings(candidates []*searchCandidate, k float64) []fusedCandidate {
	bySemantic := make([]*searchCandidate, len(candidates))
	copy(bySemantic, candidates)
	sort.SliceStable(bySemantic, func(i, j int) bool {
		return bySemantic[i].semantic > bySemantic[j].semantic
	})

	byKeyword := make([]*searchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.keyword > 0 {
			byKeyword = append(byKeyword, c)
		}
	}
	sort.SliceStable(byKeyword, func(i, j int) bool {
		return byKeyword[i].keyword > byKeyword[j].keyword
	})

	scores := make(map[*searchCandidate]float64, len(candidates))
	for rank, c := range bySemantic {
		scores[c] += 1.0 / (k + float64(rank+1))
	}
	for rank, c := range byKeyword {
		scores[c] += 1.0 / (k + float64(rank+1))
	}

	fused := make([]fusedCandidate, 0, len(candidates))
	for _, c := range bySemantic {
		fused = append(fused, fusedCandidate{cand: c, score: scores[c]})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score == fused[j].score {
			return fused[i].cand.semantic > fused[j].cand.semantic
		}
		return fused[i].score > fused[j].score
	})
	return fused
}

func scoreBM25(candidates []*searchCandidate, queryTerms []string) {
	if len(queryTerms) == 0 || len(candidates) == 0 {
		return
	}

	n := float64(len(candidates))
	totalLen := 0
	df := make(map[string]int, len(queryTerms))
	for _, c := range candidates {
		totalLen += c.length
		for term, tf := range c.terms {
			if tf > 0 {
				df[term]++
			}
		}
	}
	avgLen := float64(totalLen) / n
	if avgLen == 0 {
		return
	}

	for _, c := range candidates {
		score := 0.0
		for _, term := range queryTerms {
			tf := float64(c.terms[term])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(c.length)/avgLen)
			score += idf * tf * (bm25K1 + 1) / norm
		}
		c.keyword = score
	}
}

// termFrequencies counts occurrences of the query terms in text and returns the text's token length
func termFrequencies(text string, queryTerms []string) (map[string]int, int) {
	wanted := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		wanted[t] = true
	}

	counts := make(map[string]int, len(queryTerms))
	length := 0
	for _, token := range splitWords(text) {
		length++
		if wanted[token] {
			counts[token]++
		}
	}
	return counts, length
}

// tokenize returns the distinct, lower-cased, non-stopword terms of text
func tokenize(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, token := range splitWords(text) {
		if stopWords[token] || seen[token] {
			continue
		}
		if len([]rune(token)) < 2 && !isDigits(token) {
			continue
		}
		seen[token] = true
		terms = append(terms, token)
	}
	return terms
}

// splitWords lower-cases text and splits it into letter/digit runs.
// Combining marks stay attached so Indic-script words remain whole.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// cosineSimilarity returns 0 for empty or mismatched vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
