package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

// Number of candidate chunks pulled before the budget cut.
const contextCandidates = 10

// GetContextForQuery assembles a deterministic, budget-bounded context
// string: successive search hits, each tagged with its resource title, are
// concatenated until the running word count would exceed maxTokens.
// Results are memoized in a bounded cache keyed by query and budget; the
// cache is invalidated whenever the index changes.
func (o *Orchestrator) GetContextForQuery(ctx context.Context, query string, maxTokens int) (string, error) {
	key := fmt.Sprintf("%s|%d", query, maxTokens)
	if cached, ok := o.contextCache.Get(key); ok {
		return cached, nil
	}

	results, err := o.index.Search(ctx, query, contextCandidates)
	if err != nil {
		return "", err
	}

	var segments []string
	budget := 0
	for _, result := range results {
		title := result.Chunk.SourceURL
		if t, ok := result.Chunk.Metadata["title"].(string); ok && t != "" {
			title = t
		}

		segment := fmt.Sprintf("## %s\n%s", title, result.Chunk.Text)
		words := len(strings.Fields(segment))
		if budget+words > maxTokens {
			break
		}
		segments = append(segments, segment)
		budget += words
	}

	assembled := strings.Join(segments, "\n\n")
	o.contextCache.Add(key, assembled)
	return assembled, nil
}
