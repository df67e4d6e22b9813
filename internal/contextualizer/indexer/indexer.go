package indexer

import (
	"context"
	"crypto/md5" //nolint:gosec // document identity, not security
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	indexFileName      = "content_index.json"
	chunksFileName     = "chunks.json"
	embeddingsFileName = "embeddings.gob"
	// Hex characters of the md5 digest used as a document identity.
	docIDLen = 12
)

var ErrUnreadableText = errors.New("unreadable extracted text")

// indexDocument is the shape of index/content_index.json.
type indexDocument struct {
	Documents  map[string]*models.DocumentSummary `json:"documents"`
	Statistics models.IndexStatistics             `json:"statistics"`
}

// ContentIndexer chunks extracted text, optionally embeds chunks, and
// answers similarity and keyword queries over the corpus.
type ContentIndexer struct {
	indexDir   string
	tok        interfaces.Tokenizer
	embedder   interfaces.Embedder
	chunker    *Chunker
	documents  map[string]*models.DocumentSummary
	chunks     []models.DocumentChunk
	embeddings map[string][]float32
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// New creates an indexer over indexDir, loading any persisted state. A nil
// embedder degrades ranking to keyword overlap, not correctness.
func New(indexDir string, tok interfaces.Tokenizer, embedder interfaces.Embedder) (*ContentIndexer, error) {
	idx := &ContentIndexer{
		indexDir:   indexDir,
		tok:        tok,
		embedder:   embedder,
		chunker:    NewChunker(tok),
		documents:  make(map[string]*models.DocumentSummary),
		embeddings: make(map[string][]float32),
		logger:     util.NewLogger(util.LevelFromEnv()),
	}

	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// DocID derives the stable document identity for a source URL.
func DocID(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL)) //nolint:gosec
	return fmt.Sprintf("%x", sum[:])[:docIDLen]
}

// IndexDocument chunks the text file at path and appends the chunks to the
// index. Re-indexing the same URL appends; callers decide when that is
// wanted.
func (x *ContentIndexer) IndexDocument(
	ctx context.Context,
	path string,
	sourceURL string,
	metadata map[string]interface{},
	chunkSize int,
	overlap int,
) ([]models.DocumentChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableText, err)
	}

	pieces, err := x.chunker.ChunkText(string(data), chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	docID := DocID(sourceURL)

	x.mu.Lock()
	start := 0
	if summary, ok := x.documents[docID]; ok {
		start = summary.ChunkCount
	}
	x.mu.Unlock()

	chunks := make([]models.DocumentChunk, 0, len(pieces))
	tokenTotal := 0
	for i, piece := range pieces {
		chunk := models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d", docID, start+i),
			DocID:      docID,
			SourceURL:  sourceURL,
			ChunkIndex: start + i,
			Text:       piece.Text,
			TokenCount: piece.TokenCount,
			Metadata:   metadata,
		}
		chunks = append(chunks, chunk)
		tokenTotal += piece.TokenCount
	}

	embedded := x.embedChunks(ctx, chunks)

	x.mu.Lock()
	x.chunks = append(x.chunks, chunks...)
	for id, vec := range embedded {
		x.embeddings[id] = vec
	}
	summary, ok := x.documents[docID]
	if !ok {
		summary = &models.DocumentSummary{SourceURL: sourceURL}
		x.documents[docID] = summary
	}
	summary.ChunkCount += len(chunks)
	summary.TokenCount += tokenTotal
	summary.IndexedAt = time.Now().UTC()
	x.mu.Unlock()

	if err := x.persist(); err != nil {
		return nil, err
	}

	x.logger.Info().
		Str("source_url", sourceURL).
		Int("chunks", len(chunks)).
		Int("tokens", tokenTotal).
		Int("embedded", len(embedded)).
		Msg("document indexed")
	return chunks, nil
}

// embedChunks computes one vector per chunk when an embedder is present.
// Embedding failures are logged and skipped; keyword search still covers
// the affected chunks.
func (x *ContentIndexer) embedChunks(ctx context.Context, chunks []models.DocumentChunk) map[string][]float32 {
	if x.embedder == nil {
		return nil
	}

	embedded := make(map[string][]float32, len(chunks))
	for _, chunk := range chunks {
		vec, err := x.embedder.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			x.logger.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("embedding failed, chunk indexed without vector")
			continue
		}
		embedded[chunk.ID] = vec
	}
	return embedded
}

// Search ranks chunks against the query: cosine over stored embeddings
// when both vectors and an embedder are present, keyword overlap otherwise.
func (x *ContentIndexer) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	searcher := x.searcher()
	return searcher.Search(ctx, query, topK)
}

func (x *ContentIndexer) searcher() interfaces.Searcher {
	x.mu.RLock()
	hasVectors := len(x.embeddings) > 0
	x.mu.RUnlock()

	if hasVectors && x.embedder != nil {
		return &CosineSearcher{index: x}
	}
	return &KeywordSearcher{index: x}
}

// HasDocument reports whether the URL already has indexed chunks.
func (x *ContentIndexer) HasDocument(sourceURL string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.documents[DocID(sourceURL)]
	return ok
}

// Statistics returns aggregate corpus totals.
func (x *ContentIndexer) Statistics() models.IndexStatistics {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.statisticsLocked()
}

func (x *ContentIndexer) statisticsLocked() models.IndexStatistics {
	stats := models.IndexStatistics{DocumentCount: len(x.documents)}
	for _, summary := range x.documents {
		stats.ChunkCount += summary.ChunkCount
		stats.TokenCount += summary.TokenCount
	}
	return stats
}

// snapshotChunks returns a copy of the chunk sequence for search.
func (x *ContentIndexer) snapshotChunks() []models.DocumentChunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]models.DocumentChunk(nil), x.chunks...)
}

func (x *ContentIndexer) vectorFor(chunkID string) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	vec, ok := x.embeddings[chunkID]
	return vec, ok
}

// Persistence

func (x *ContentIndexer) load() error {
	if err := x.loadJSON(filepath.Join(x.indexDir, chunksFileName), &x.chunks); err != nil {
		return err
	}

	var doc indexDocument
	if err := x.loadJSON(filepath.Join(x.indexDir, indexFileName), &doc); err != nil {
		return err
	}
	if doc.Documents != nil {
		x.documents = doc.Documents
	}

	return x.loadEmbeddings()
}

func (x *ContentIndexer) loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (x *ContentIndexer) loadEmbeddings() error {
	in, err := os.Open(filepath.Join(x.indexDir, embeddingsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	embeddings := make(map[string][]float32)
	if err := gob.NewDecoder(in).Decode(&embeddings); err != nil {
		x.logger.Warn().Err(err).Msg("corrupt embeddings store, continuing without vectors")
		return nil
	}
	x.embeddings = embeddings
	return nil
}

func (x *ContentIndexer) persist() error {
	if err := os.MkdirAll(x.indexDir, 0o755); err != nil {
		return err
	}

	x.mu.RLock()
	doc := indexDocument{Documents: x.documents, Statistics: x.statisticsLocked()}
	docData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		x.mu.RUnlock()
		return err
	}
	chunkData, err := json.MarshalIndent(x.chunks, "", "  ")
	if err != nil {
		x.mu.RUnlock()
		return err
	}
	embeddings := make(map[string][]float32, len(x.embeddings))
	for id, vec := range x.embeddings {
		embeddings[id] = vec
	}
	x.mu.RUnlock()

	if err := atomicWrite(filepath.Join(x.indexDir, indexFileName), docData); err != nil {
		return err
	}
	if err := atomicWrite(filepath.Join(x.indexDir, chunksFileName), chunkData); err != nil {
		return err
	}
	return x.persistEmbeddings(embeddings)
}

func (x *ContentIndexer) persistEmbeddings(embeddings map[string][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}

	path := filepath.Join(x.indexDir, embeddingsFileName)
	tmp := path + ".tmp-" + uuid.New().String()
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(out).Encode(embeddings); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
