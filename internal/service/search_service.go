package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/attrebi/kbase/internal/ai"
)

const (
	// DefaultHybridWeight is how much of a hybrid score comes from the
	// semantic side; the keyword side gets the remainder.
	DefaultHybridWeight = 0.7

	minTokenRunes = 3
	snippetWidth  = 150
)

type KeywordResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	SourceType string `json:"source_type"`
	Snippet    string `json:"snippet"`
	MatchCount int    `json:"match_count"`
	Mtime      int64  `json:"mtime"`
}

type SemanticResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	SourceType string  `json:"source_type"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type HybridResult struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	ChunkIndex    int     `json:"chunk_index"`
	Title         string  `json:"title"`
	SourceType    string  `json:"source_type"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
}

type SimilarResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	SourceType string  `json:"source_type"`
	Score      float64 `json:"score"`
}

type SearchService struct {
	docs       DocumentStore
	embeddings EmbeddingStore
	client     EmbeddingClient
}

func NewSearchService(docs DocumentStore, embeddings EmbeddingStore, client EmbeddingClient) *SearchService {
	return &SearchService{docs: docs, embeddings: embeddings, client: client}
}

// Enabled reports whether semantic and hybrid search can run at all.
func (s *SearchService) Enabled() bool {
	return s.client != nil && s.client.Enabled()
}

// KeywordSearch matches ready documents containing every query token in
// title or content, most recently updated first. Tokens shorter than three
// runes are noise and get dropped; a query with no usable tokens matches
// nothing.
func (s *SearchService) KeywordSearch(ctx context.Context, userID, query string, limit uint) ([]KeywordResult, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []KeywordResult{}, nil
	}
	docs, err := s.docs.KeywordCandidates(ctx, userID, tokens, limit)
	if err != nil {
		return nil, err
	}
	results := make([]KeywordResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, KeywordResult{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Content:    doc.Content,
			SourceType: doc.SourceType,
			Snippet:    makeSnippet(doc.Content, tokens),
			MatchCount: countMatches(doc.Title, doc.Content, tokens),
			Mtime:      doc.Mtime,
		})
	}
	return results, nil
}

// SemanticSearch embeds the query and ranks every stored chunk vector by
// cosine similarity. Without an embedding provider the result is empty, not
// an error.
func (s *SearchService) SemanticSearch(ctx context.Context, userID, query string, limit uint) ([]SemanticResult, error) {
	if !s.Enabled() {
		return []SemanticResult{}, nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []SemanticResult{}, nil
	}
	queryEmb, err := s.client.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		logutil.GetLogger(ctx).Error("failed to embed search query", zap.Error(err))
		return nil, err
	}
	candidates, err := s.embeddings.ListCandidates(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	results := make([]SemanticResult, 0, len(candidates))
	for _, item := range candidates {
		results = append(results, SemanticResult{
			ChunkID:    item.ChunkID,
			DocumentID: item.DocumentID,
			ChunkIndex: item.ChunkIndex,
			Title:      item.DocTitle,
			SourceType: item.SourceType,
			Content:    item.Content,
			Score:      cosineSimilarity(queryEmb, item.Embedding),
		})
	}
	// Candidates arrive ordered by document and chunk index, so a stable
	// sort keeps equal scores deterministic.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && uint(len(results)) > limit {
		results = results[:limit]
	}
	return results, nil
}

// HybridSearch fuses semantic and keyword rankings. Each side contributes a
// rank-based score: position i of n earns (1 - i/n) scaled by its weight.
// A keyword hit boosts every semantic chunk of the same document; documents
// found only by keyword do not enter the result.
func (s *SearchService) HybridSearch(ctx context.Context, userID, query string, limit uint, weight float64) ([]HybridResult, error) {
	if weight <= 0 || weight > 1 {
		weight = DefaultHybridWeight
	}
	fetch := limit * 2
	semantic, err := s.SemanticSearch(ctx, userID, query, fetch)
	if err != nil {
		return nil, err
	}
	keyword, err := s.KeywordSearch(ctx, userID, query, fetch)
	if err != nil {
		return nil, err
	}
	results := make([]HybridResult, 0, len(semantic))
	byDoc := make(map[string][]int)
	for i, item := range semantic {
		results = append(results, HybridResult{
			ChunkID:       item.ChunkID,
			DocumentID:    item.DocumentID,
			ChunkIndex:    item.ChunkIndex,
			Title:         item.Title,
			SourceType:    item.SourceType,
			Content:       item.Content,
			SemanticScore: (1 - float64(i)/float64(len(semantic))) * weight,
		})
		byDoc[item.DocumentID] = append(byDoc[item.DocumentID], i)
	}
	for j, item := range keyword {
		boost := (1 - float64(j)/float64(len(keyword))) * (1 - weight)
		for _, idx := range byDoc[item.DocumentID] {
			results[idx].KeywordScore = boost
		}
	}
	for i := range results {
		results[i].Score = results[i].SemanticScore + results[i].KeywordScore
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && uint(len(results)) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FindSimilar ranks other documents against the given one, represented by
// the embedding of its first chunk. Per document only the best-scoring chunk
// counts. Without an embedding provider the result is empty, not an error.
func (s *SearchService) FindSimilar(ctx context.Context, userID, docID string, limit uint) ([]SimilarResult, error) {
	if !s.Enabled() {
		return []SimilarResult{}, nil
	}
	reference, err := s.embeddings.FirstChunkEmbedding(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.embeddings.ListCandidates(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	best := make(map[string]int)
	results := make([]SimilarResult, 0)
	for _, item := range candidates {
		score := cosineSimilarity(reference.Embedding, item.Embedding)
		if idx, ok := best[item.DocumentID]; ok {
			if score > results[idx].Score {
				results[idx].Score = score
			}
			continue
		}
		best[item.DocumentID] = len(results)
		results = append(results, SimilarResult{
			DocumentID: item.DocumentID,
			Title:      item.DocTitle,
			SourceType: item.SourceType,
			Score:      score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && uint(len(results)) > limit {
		results = results[:limit]
	}
	return results, nil
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= minTokenRunes {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func countMatches(title, content string, tokens []string) int {
	haystack := strings.ToLower(title) + " " + strings.ToLower(content)
	count := 0
	for _, token := range tokens {
		count += strings.Count(haystack, token)
	}
	return count
}

// makeSnippet cuts a window around the first token hit in the content, with
// ellipses marking truncation on either side.
func makeSnippet(content string, tokens []string) string {
	lower := strings.ToLower(content)
	idx := -1
	for _, token := range tokens {
		if i := strings.Index(lower, token); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		if len(content) <= snippetWidth {
			return content
		}
		end := snippetWidth
		for end > 0 && !utf8.RuneStart(content[end]) {
			end--
		}
		return content[:end] + "..."
	}
	start := idx - snippetWidth/2
	if start < 0 {
		start = 0
	}
	end := start + snippetWidth
	if end > len(content) {
		end = len(content)
		if start = end - snippetWidth; start < 0 {
			start = 0
		}
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}

// cosineSimilarity panics on mismatched dimensions: vectors of different
// models must never be compared, and silently scoring them zero would hide
// a misconfiguration.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("embedding dimension mismatch: %d vs %d", len(a), len(b)))
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
