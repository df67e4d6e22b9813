package interfaces

import (
	"context"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
)

// FetchResult represents the outcome of one fetch backend attempt.
type FetchResult struct {
	Path     string
	Metadata *models.FetchMetadata
}

// ExtractResult represents extracted text plus structural metadata.
type ExtractResult struct {
	Text     string
	Metadata *models.ExtractMetadata
}

// ExtractOptions control optional structure extraction for PDF backends.
type ExtractOptions struct {
	Images bool
	Tables bool
}

// FetchBackend defines one strategy for acquiring a URL onto disk.
// Backends are probed once at construction and tried in order at call
// time; the first success wins.
type FetchBackend interface {
	// Name returns the backend identifier recorded in fetch metadata
	Name() string

	// Available reports whether the backend can run on this host
	Available() bool

	// Fetch downloads the URL into destPath
	Fetch(ctx context.Context, url, destPath string) error
}

// PDFBackend defines one strategy for extracting text from a cached PDF.
type PDFBackend interface {
	// Name returns the backend identifier recorded in extract metadata
	Name() string

	// Available reports whether the backend can run on this host
	Available() bool

	// Extract converts the PDF at path into text and metadata
	Extract(path string, opts ExtractOptions) (*ExtractResult, error)
}

// Embedder defines the interface for generating vector embeddings.
type Embedder interface {
	// GenerateEmbedding creates a vector embedding for the given content
	GenerateEmbedding(ctx context.Context, content string) ([]float32, error)

	// GetModelName returns the name of the embedding model
	GetModelName() string

	// GetDimension returns the dimension of the embedding vectors
	GetDimension() int

	// GetMaxTokens returns the maximum number of tokens this embedder can handle
	GetMaxTokens() int
}

// Tokenizer splits text into token strings and joins them back. Decode of
// an Encode result must reproduce the encoded token sequence exactly.
type Tokenizer interface {
	// Encode splits text into token strings
	Encode(text string) ([]string, error)

	// Decode joins token strings back into text
	Decode(tokens []string) string

	// Name returns the tokenizer identifier recorded on chunks
	Name() string
}

// Searcher ranks indexed chunks against a query. Two built-in
// implementations exist: a linear cosine scan over stored embeddings and a
// keyword-overlap fallback.
type Searcher interface {
	// Search returns up to topK chunks with non-increasing scores
	Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error)

	// Name returns the ranking strategy identifier
	Name() string
}
