package embedders

import (
	"strings"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
)

// Detect probes the embedding backends once and returns the first one
// whose credentials are present for the configured model. A nil return
// means no backend is available; search degrades to keyword ranking.
func Detect(model string) interfaces.Embedder {
	if strings.HasPrefix(model, "togethercomputer/") {
		if embedder, err := NewTogetherAIEmbedder(model); err == nil {
			return embedder
		}
		return nil
	}

	if embedder, err := NewOpenAIEmbedder(model); err == nil {
		return embedder
	}
	return nil
}
