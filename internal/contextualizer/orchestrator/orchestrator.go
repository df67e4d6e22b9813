// Package orchestrator owns the resource registry and drives each web
// resource through fetch, extraction and indexing, persisting state after
// every transition.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/config"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/embedders"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/extract"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/fetcher"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/history"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/indexer"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/pdf"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/registry"
	"github.com/vamseeachanta/webcontext/pkg/util"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	registryFileName = "registry.json"
	historyFileName  = "history.db"
	// Capacity of the memoized context-query cache.
	contextCacheSize = 64
	// Message returned when a per-resource lock is contended. Lock
	// contention is a normal concurrent-skip signal, not an error.
	MsgAlreadyProcessing = "already being processed"
)

// Orchestrator coordinates the fetch/extract/index pipeline over the
// resource registry.
type Orchestrator struct {
	cfg          *config.Config
	reg          *registry.Registry
	fetcher      *fetcher.ResourceFetcher
	pdfProc      *pdf.Processor
	extractor    *extract.Extractor
	index        *indexer.ContentIndexer
	ledger       *history.Ledger
	contextCache *lru.Cache[string, string]
	logger       zerolog.Logger
}

// New wires the engine under cfg.BaseDir: registry.json, cache/,
// versions/, index/ and the fetch-history ledger.
func New(cfg *config.Config) (*Orchestrator, error) {
	logger := util.NewLogger(util.LevelFromEnv())

	reg, err := registry.New(filepath.Join(cfg.BaseDir, registryFileName))
	if err != nil {
		return nil, err
	}

	var tok interfaces.Tokenizer
	if bpe, err := indexer.NewTiktokenTokenizer(); err == nil {
		tok = bpe
	} else {
		logger.Warn().Err(err).Msg("bpe tokenizer unavailable, falling back to whitespace tokens")
		tok = indexer.NewWordTokenizer()
	}

	embedder := embedders.Detect(cfg.Indexing.EmbeddingModel)
	if embedder == nil {
		logger.Info().Str("model", cfg.Indexing.EmbeddingModel).
			Msg("no embedding backend available, search uses keyword ranking")
	}

	idx, err := indexer.New(filepath.Join(cfg.BaseDir, "index"), tok, embedder)
	if err != nil {
		return nil, err
	}

	ledger, err := history.Open(filepath.Join(cfg.BaseDir, historyFileName))
	if err != nil {
		logger.Warn().Err(err).Msg("fetch history unavailable")
		ledger = nil
	}

	cache, err := lru.New[string, string](contextCacheSize)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg: cfg,
		reg: reg,
		fetcher: fetcher.New(
			filepath.Join(cfg.BaseDir, "cache"),
			filepath.Join(cfg.BaseDir, "versions"),
		),
		pdfProc:      pdf.NewProcessor(),
		extractor:    extract.New(),
		index:        idx,
		ledger:       ledger,
		contextCache: cache,
		logger:       logger,
	}, nil
}

// NewWithComponents exists for tests that stub the pipeline stages.
func NewWithComponents(
	cfg *config.Config,
	reg *registry.Registry,
	f *fetcher.ResourceFetcher,
	p *pdf.Processor,
	idx *indexer.ContentIndexer,
) *Orchestrator {
	cache, _ := lru.New[string, string](contextCacheSize)
	return &Orchestrator{
		cfg:          cfg,
		reg:          reg,
		fetcher:      f,
		pdfProc:      p,
		extractor:    extract.New(),
		index:        idx,
		contextCache: cache,
		logger:       util.NewLogger(util.LevelFromEnv()),
	}
}

// Close releases the history ledger.
func (o *Orchestrator) Close() error {
	if o.ledger != nil {
		return o.ledger.Close()
	}
	return nil
}

// Registry exposes the resource registry to coordinators and commands.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// Config returns the active configuration.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// AddOptions carries the optional fields of a resource registration.
type AddOptions struct {
	Type         models.ResourceType
	Title        string
	Description  string
	Tags         []string
	Dependencies []string
	Priority     int
	Process      bool
}

// AddResource registers a URL. Registration is idempotent: an already
// known URL is a no-op. With opts.Process the resource is driven through
// the pipeline immediately.
func (o *Orchestrator) AddResource(ctx context.Context, url string, opts AddOptions) (bool, error) {
	if o.reg.Has(url) {
		o.logger.Debug().Str("url", url).Msg("resource already registered")
		return false, nil
	}

	if opts.Type == "" {
		opts.Type = models.TypeUserAdded
	}

	res := &models.WebResource{
		URL:             url,
		Type:            opts.Type,
		Title:           opts.Title,
		Description:     opts.Description,
		ContentType:     inferContentType(url),
		Status:          models.StatusPending,
		RefreshInterval: o.cfg.RefreshIntervalFor(opts.Type),
		Priority:        opts.Priority,
		MaxRetries:      o.cfg.MaxRetries,
		Tags:            opts.Tags,
		Dependencies:    opts.Dependencies,
	}
	o.reg.Put(res)
	if err := o.reg.Save(); err != nil {
		return false, err
	}

	o.logger.Info().Str("url", url).Str("type", string(opts.Type)).Msg("resource registered")

	if opts.Process {
		result := o.FetchAndProcess(ctx, url)
		if !result.Success {
			o.logger.Warn().Str("url", url).Str("message", result.Message).Msg("immediate processing failed")
		}
	}
	return true, nil
}

// inferContentType guesses the raw format from the URL. Unknown types
// default to text rather than failing.
func inferContentType(url string) models.ContentType {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".pdf"):
		return models.ContentPDF
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return models.ContentMarkdown
	case strings.HasSuffix(lower, ".json"):
		return models.ContentJSON
	case strings.HasSuffix(lower, ".txt"):
		return models.ContentText
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return models.ContentHTML
	default:
		return models.ContentText
	}
}

// FetchAndProcess drives exactly one fetch -> extract -> index sequence
// for the URL. Expected failures are recorded on the resource and returned
// in the result, never propagated.
func (o *Orchestrator) FetchAndProcess(ctx context.Context, url string) models.ProcessResult {
	return o.fetchAndProcess(ctx, url, false)
}

func (o *Orchestrator) fetchAndProcess(ctx context.Context, url string, forceFetch bool) models.ProcessResult {
	start := time.Now()

	if !o.reg.Has(url) {
		return models.ProcessResult{URL: url, Success: false, Message: "resource not registered"}
	}

	if !o.reg.TryLock(url) {
		return models.ProcessResult{URL: url, Success: false, Message: MsgAlreadyProcessing}
	}
	defer o.reg.Unlock(url)

	if err := o.process(ctx, url, forceFetch); err != nil {
		msg := err.Error()
		_ = o.reg.Update(url, func(res *models.WebResource) {
			res.Status = models.StatusError
			res.ErrorMessage = msg
			res.RetryCount++
		})
		if saveErr := o.reg.Save(); saveErr != nil {
			o.logger.Error().Err(saveErr).Msg("failed to persist registry after error")
		}
		o.logger.Warn().Str("url", url).Str("error", msg).Msg("processing failed")
		return models.ProcessResult{URL: url, Success: false, Message: msg, Duration: time.Since(start)}
	}

	_ = o.reg.Update(url, func(res *models.WebResource) {
		res.RetryCount = 0
		res.ErrorMessage = ""
	})
	if err := o.reg.Save(); err != nil {
		o.logger.Error().Err(err).Msg("failed to persist registry")
	}
	return models.ProcessResult{URL: url, Success: true, Duration: time.Since(start)}
}

// process runs the pipeline stages, persisting after each transition.
func (o *Orchestrator) process(ctx context.Context, url string, forceFetch bool) error {
	res, _ := o.reg.Get(url)

	// Fetch
	fetchStart := time.Now()
	cachePath, meta, err := o.fetcher.Fetch(ctx, url, forceFetch, o.cfg.CacheSettings.VersionControl)
	o.recordFetch(url, meta, time.Since(fetchStart), err)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	checksum := meta.Checksum
	if checksum == "" {
		if sum, err := fetcher.FileChecksum(cachePath); err == nil {
			checksum = sum
		}
	}

	now := time.Now().UTC()

	// An unchanged document that is already in the index has nothing left
	// to do. Running the index stage again would append a second copy of
	// every chunk, since re-indexing always appends.
	if res.Indexed && checksum != "" && checksum == res.Checksum && o.index.HasDocument(url) {
		_ = o.reg.Update(url, func(r *models.WebResource) {
			r.Status = models.StatusIndexed
			r.LastFetched = &now
			r.ErrorMessage = ""
		})
		o.logger.Debug().Str("url", url).Str("checksum", checksum).Msg("content unchanged, index already current")
		return o.reg.Save()
	}
	_ = o.reg.Update(url, func(r *models.WebResource) {
		r.Status = models.StatusFetched
		r.CacheFile = cachePath
		r.Checksum = checksum
		r.FileSize = meta.Size
		r.LastFetched = &now
		r.ErrorMessage = ""
	})
	if err := o.reg.Save(); err != nil {
		return err
	}

	// Extract
	var textPath string
	var extractMeta *models.ExtractMetadata
	if res.ContentType == models.ContentPDF {
		if !o.cfg.PDFExtraction {
			o.logger.Info().Str("url", url).Msg("pdf extraction disabled, leaving resource at fetched")
			return nil
		}
		textPath, extractMeta, err = o.pdfProc.Process(cachePath, true, true)
	} else {
		textPath, extractMeta, err = o.extractor.Process(cachePath, res.ContentType)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	_ = o.reg.Update(url, func(r *models.WebResource) {
		r.Status = models.StatusProcessed
		r.TextFile = textPath
		if r.Title == "" && extractMeta.Title != "" {
			r.Title = extractMeta.Title
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]interface{})
		}
		r.Metadata["extract_backend"] = extractMeta.Backend
		if extractMeta.PageCount > 0 {
			r.Metadata["page_count"] = extractMeta.PageCount
		}
		if extractMeta.TablesExtracted > 0 {
			r.Metadata["tables_extracted"] = extractMeta.TablesExtracted
		}
		if extractMeta.ImagesFound > 0 {
			r.Metadata["images_found"] = extractMeta.ImagesFound
		}
	})
	if err := o.reg.Save(); err != nil {
		return err
	}

	// Index
	if !o.cfg.AutoIndex {
		return nil
	}

	res, _ = o.reg.Get(url)
	chunkMeta := map[string]interface{}{
		"title": res.Title,
		"type":  string(res.Type),
	}
	if len(res.Tags) > 0 {
		chunkMeta["tags"] = res.Tags
	}

	if _, err := o.index.IndexDocument(
		ctx, textPath, url, chunkMeta,
		o.cfg.Indexing.ChunkSize, o.cfg.Indexing.Overlap,
	); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	o.contextCache.Purge()

	_ = o.reg.Update(url, func(r *models.WebResource) {
		r.Status = models.StatusIndexed
		r.Indexed = true
	})
	return o.reg.Save()
}

func (o *Orchestrator) recordFetch(url string, meta *models.FetchMetadata, elapsed time.Duration, err error) {
	if o.ledger == nil {
		return
	}

	attempt := history.Attempt{URL: url, Duration: elapsed}
	if err != nil {
		attempt.Error = err.Error()
	} else {
		attempt.OK = true
		attempt.Backend = meta.Method
		attempt.Bytes = meta.Size
	}
	if recordErr := o.ledger.Record(attempt); recordErr != nil {
		o.logger.Warn().Err(recordErr).Msg("failed to record fetch attempt")
	}
}

// FetchAllPending processes every pending resource in priority order.
// Per-item failures are isolated; the batch always runs to completion.
func (o *Orchestrator) FetchAllPending(ctx context.Context) []models.ProcessResult {
	var results []models.ProcessResult
	for _, res := range o.reg.All() {
		if res.Status != models.StatusPending {
			continue
		}
		results = append(results, o.FetchAndProcess(ctx, res.URL))
	}
	return results
}

// RefreshOutdated reprocesses stale resources. With force=true every
// resource is reprocessed regardless of its interval; manual resources are
// only ever refreshed by force.
func (o *Orchestrator) RefreshOutdated(ctx context.Context, force bool) []models.ProcessResult {
	now := time.Now().UTC()
	fallback, _, _ := models.ParseRefreshInterval("1w")

	var results []models.ProcessResult
	for _, res := range o.reg.All() {
		if res.Status == models.StatusError && res.RetryCount >= res.MaxRetries {
			o.logger.Debug().Str("url", res.URL).Msg("retries exhausted, skipping")
			continue
		}
		if !force && !res.NeedsRefresh(now, fallback) {
			continue
		}
		results = append(results, o.fetchAndProcess(ctx, res.URL, true))
	}
	return results
}

// Search ranks indexed chunks against the query.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	return o.index.Search(ctx, query, topK)
}
