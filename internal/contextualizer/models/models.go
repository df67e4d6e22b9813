package models

import (
	"time"
)

// ResourceStatus tracks a resource through its processing lifecycle.
// Transitions move forward along pending -> fetched -> processed -> indexed,
// or jump to error from any state.
type ResourceStatus string

const (
	StatusPending   ResourceStatus = "pending"
	StatusFetched   ResourceStatus = "fetched"
	StatusProcessed ResourceStatus = "processed"
	StatusIndexed   ResourceStatus = "indexed"
	StatusError     ResourceStatus = "error"
)

// rank orders the forward states so transitions can be validated.
func (s ResourceStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusFetched:
		return 1
	case StatusProcessed:
		return 2
	case StatusIndexed:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether s has reached the given forward state.
func (s ResourceStatus) AtLeast(other ResourceStatus) bool {
	return s.rank() >= other.rank() && other.rank() >= 0 && s.rank() >= 0
}

// ResourceType classifies where a resource sits in the documentation corpus.
type ResourceType string

const (
	TypeOfficialDocs ResourceType = "official_docs"
	TypeAPIReference ResourceType = "api_reference"
	TypeTutorial     ResourceType = "tutorial"
	TypeStandard     ResourceType = "standard"
	TypeUserAdded    ResourceType = "user_added"
)

// ContentType is the raw format of the fetched resource.
type ContentType string

const (
	ContentPDF      ContentType = "pdf"
	ContentHTML     ContentType = "html"
	ContentMarkdown ContentType = "markdown"
	ContentJSON     ContentType = "json"
	ContentText     ContentType = "text"
)

// WebResource is a single external URL tracked by the orchestrator.
// It is keyed by URL in the registry.
type WebResource struct {
	URL             string                 `json:"url"`
	Type            ResourceType           `json:"type"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	ContentType     ContentType            `json:"content_type"`
	Status          ResourceStatus         `json:"status"`
	CacheFile       string                 `json:"cache_file,omitempty"`
	TextFile        string                 `json:"text_file,omitempty"`
	Indexed         bool                   `json:"indexed"`
	Checksum        string                 `json:"checksum,omitempty"`
	FileSize        int64                  `json:"file_size"`
	LastFetched     *time.Time             `json:"last_fetched,omitempty"`
	RefreshInterval string                 `json:"refresh_interval"`
	Priority        int                    `json:"priority"`
	RetryCount      int                    `json:"retry_count"`
	MaxRetries      int                    `json:"max_retries"`
	Tags            []string               `json:"tags,omitempty"`
	Dependencies    []string               `json:"dependencies,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentChunk is a contiguous slice of a document's extracted text sized
// for indexing and retrieval.
type DocumentChunk struct {
	ID         string                 `json:"id"`
	DocID      string                 `json:"doc_id"`
	SourceURL  string                 `json:"source_url"`
	ChunkIndex int                    `json:"chunk_index"`
	Text       string                 `json:"text"`
	TokenCount int                    `json:"token_count"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentSummary aggregates per-document index state.
type DocumentSummary struct {
	SourceURL  string    `json:"source_url"`
	ChunkCount int       `json:"chunk_count"`
	TokenCount int       `json:"token_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// IndexStatistics aggregates corpus-wide index state.
type IndexStatistics struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
	TokenCount    int `json:"token_count"`
}

// FetchMetadata is the sidecar written next to every cache slot.
type FetchMetadata struct {
	URL         string    `json:"url"`
	Method      string    `json:"method"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	FetchedAt   time.Time `json:"fetched_at"`
	Checksum    string    `json:"checksum,omitempty"`
	CacheHit    bool      `json:"cache_hit,omitempty"`
}

// SnapshotMetadata is the sidecar written next to a version snapshot.
type SnapshotMetadata struct {
	SourceURL  string    `json:"source_url"`
	SnapshotAt time.Time `json:"snapshot_at"`
	Size       int64     `json:"size"`
}

// ExtractMetadata records how a cached document was turned into text.
type ExtractMetadata struct {
	Backend         string `json:"backend"`
	PageCount       int    `json:"page_count,omitempty"`
	TablesExtracted int    `json:"tables_extracted,omitempty"`
	ImagesFound     int    `json:"images_found,omitempty"`
	Title           string `json:"title,omitempty"`
}

// SearchResult pairs a chunk with its ranking score.
type SearchResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// ProcessResult is the structured outcome of driving one resource through
// the pipeline. Expected failures land here instead of in an error return.
type ProcessResult struct {
	URL      string        `json:"url"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StatusReport summarizes registry and cache state for operators.
type StatusReport struct {
	Total          int                    `json:"total"`
	ByStatus       map[ResourceStatus]int `json:"by_status"`
	ByType         map[ResourceType]int   `json:"by_type"`
	CacheSizeBytes int64                  `json:"cache_size_bytes"`
	Errored        []ErroredResource      `json:"errored,omitempty"`
}

// ErroredResource is one failed entry in a status report.
type ErroredResource struct {
	URL          string `json:"url"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
	MaxRetries   int    `json:"max_retries"`
}

// Metrics holds running totals for parallel processing runs.
type Metrics struct {
	Attempts        int           `json:"attempts"`
	Successes       int           `json:"successes"`
	Failures        int           `json:"failures"`
	TotalDuration   time.Duration `json:"total_duration_ns"`
	AverageDuration time.Duration `json:"average_duration_ns"`
}
