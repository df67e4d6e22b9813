package indexer

import (
	"context"
	"sort"
	"strings"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"

	"github.com/viterin/vek/vek32"
)

// Fixed bonus added to a keyword score when the whole query appears as a
// substring of the chunk.
const exactMatchBonus = 5.0

// CosineSearcher ranks chunks by cosine similarity between the query
// embedding and stored chunk embeddings. Chunks without vectors are
// skipped; ties keep original chunk order.
type CosineSearcher struct {
	index *ContentIndexer
}

func (s *CosineSearcher) Name() string { return "cosine" }

func (s *CosineSearcher) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	queryVec, err := s.index.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for _, chunk := range s.index.snapshotChunks() {
		vec, ok := s.index.vectorFor(chunk.ID)
		if !ok || len(vec) != len(queryVec) {
			continue
		}
		score := float64(vek32.CosineSimilarity(queryVec, vec))
		results = append(results, models.SearchResult{Chunk: chunk, Score: score})
	}

	return topResults(results, topK), nil
}

// KeywordSearcher ranks chunks by shared-word count plus a fixed bonus for
// an exact substring match. Fallback ranking when no embeddings exist.
type KeywordSearcher struct {
	index *ContentIndexer
}

func (s *KeywordSearcher) Name() string { return "keyword" }

func (s *KeywordSearcher) Search(_ context.Context, query string, topK int) ([]models.SearchResult, error) {
	queryWords := uniqueWords(query)
	queryLower := strings.ToLower(strings.TrimSpace(query))

	var results []models.SearchResult
	for _, chunk := range s.index.snapshotChunks() {
		textLower := strings.ToLower(chunk.Text)
		chunkWords := uniqueWords(textLower)

		score := 0.0
		for word := range queryWords {
			if _, ok := chunkWords[word]; ok {
				score++
			}
		}
		if queryLower != "" && strings.Contains(textLower, queryLower) {
			score += exactMatchBonus
		}
		if score > 0 {
			results = append(results, models.SearchResult{Chunk: chunk, Score: score})
		}
	}

	return topResults(results, topK), nil
}

// topResults sorts by non-increasing score, stably so ties keep original
// chunk order, and truncates to topK.
func topResults(results []models.SearchResult, topK int) []models.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func uniqueWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(word, ".,;:!?()[]{}\"'")] = struct{}{}
	}
	return words
}
