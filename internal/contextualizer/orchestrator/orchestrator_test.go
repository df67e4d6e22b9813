package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/config"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/fetcher"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/indexer"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/pdf"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/registry"
)

// stubFetchBackend serves canned bytes per URL without any network.
type stubFetchBackend struct {
	content map[string]string
	err     error
	calls   int
}

func (b *stubFetchBackend) Name() string    { return "stub" }
func (b *stubFetchBackend) Available() bool { return true }

func (b *stubFetchBackend) Fetch(_ context.Context, url, destPath string) error {
	b.calls++
	if b.err != nil {
		return b.err
	}
	body, ok := b.content[url]
	if !ok {
		return errors.New("no such document")
	}
	return os.WriteFile(destPath, []byte(body), 0o644)
}

func testOrchestrator(t *testing.T, backend *stubFetchBackend) *Orchestrator {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.BaseDir = base
	cfg.CacheSettings.VersionControl = false
	cfg.Indexing.ChunkSize = 50
	cfg.Indexing.Overlap = 0

	reg, err := registry.New(filepath.Join(base, "registry.json"))
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	idx, err := indexer.New(filepath.Join(base, "index"), indexer.NewWordTokenizer(), nil)
	if err != nil {
		t.Fatalf("indexer.New() error = %v", err)
	}
	f := fetcher.NewWithBackends(
		filepath.Join(base, "cache"),
		filepath.Join(base, "versions"),
		backend,
	)
	return NewWithComponents(cfg, reg, f, pdf.NewProcessorWithBackends(), idx)
}

func TestAddResource(t *testing.T) {
	orch := testOrchestrator(t, &stubFetchBackend{})

	added, err := orch.AddResource(context.Background(), "https://example.com/guide.html", AddOptions{
		Title:    "Guide",
		Priority: 5,
		Tags:     []string{"docs"},
	})
	if err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}
	if !added {
		t.Fatal("AddResource() = false for a new URL")
	}

	res, ok := orch.Registry().Get("https://example.com/guide.html")
	if !ok {
		t.Fatal("resource not in registry")
	}
	if res.Type != models.TypeUserAdded {
		t.Errorf("type = %s, want user_added default", res.Type)
	}
	if res.ContentType != models.ContentHTML {
		t.Errorf("content type = %s, want html", res.ContentType)
	}
	if res.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", res.Status)
	}
	if res.RefreshInterval != models.IntervalManual {
		t.Errorf("refresh interval = %q, want manual for user_added", res.RefreshInterval)
	}
	if res.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", res.MaxRetries)
	}

	// Registration is idempotent.
	added, err = orch.AddResource(context.Background(), "https://example.com/guide.html", AddOptions{Priority: 9})
	if err != nil {
		t.Fatalf("second AddResource() error = %v", err)
	}
	if added {
		t.Error("AddResource() = true for a known URL")
	}
	res, _ = orch.Registry().Get("https://example.com/guide.html")
	if res.Priority != 5 {
		t.Errorf("re-registration changed priority to %d", res.Priority)
	}
}

func TestInferContentType(t *testing.T) {
	tests := []struct {
		url  string
		want models.ContentType
	}{
		{url: "https://example.com/spec.pdf", want: models.ContentPDF},
		{url: "https://example.com/pdfs/report.PDF?v=2", want: models.ContentPDF},
		{url: "https://example.com/notes.md", want: models.ContentMarkdown},
		{url: "https://example.com/api.json", want: models.ContentJSON},
		{url: "https://example.com/plain.txt", want: models.ContentText},
		{url: "https://example.com/docs/intro", want: models.ContentHTML},
		{url: "ftp://example.com/file", want: models.ContentText},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := inferContentType(tt.url); got != tt.want {
				t.Errorf("inferContentType(%q) = %s, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestFetchAndProcess_EndToEnd(t *testing.T) {
	url := "https://example.com/install.html"
	backend := &stubFetchBackend{content: map[string]string{
		url: `<html><head><title>Install Guide</title></head>
<body><h1>Installing</h1><p>Download the binary and add it to your PATH.</p></body></html>`,
	}}
	orch := testOrchestrator(t, backend)

	if _, err := orch.AddResource(context.Background(), url, AddOptions{}); err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}

	result := orch.FetchAndProcess(context.Background(), url)
	if !result.Success {
		t.Fatalf("FetchAndProcess() failed: %s", result.Message)
	}

	res, _ := orch.Registry().Get(url)
	if res.Status != models.StatusIndexed {
		t.Errorf("status = %s, want indexed", res.Status)
	}
	if !res.Indexed {
		t.Error("indexed flag not set")
	}
	if res.CacheFile == "" || res.TextFile == "" {
		t.Errorf("missing file paths: cache=%q text=%q", res.CacheFile, res.TextFile)
	}
	if res.Checksum == "" {
		t.Error("missing checksum")
	}
	if res.LastFetched == nil {
		t.Error("missing last_fetched")
	}
	// Title harvested from the HTML head.
	if res.Title != "Install Guide" {
		t.Errorf("title = %q, want Install Guide", res.Title)
	}
	if res.Metadata["extract_backend"] != "html-to-markdown" {
		t.Errorf("extract backend = %v", res.Metadata["extract_backend"])
	}

	// Indexed content is searchable.
	hits, err := orch.Search(context.Background(), "binary PATH", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no search results for indexed content")
	}
	if hits[0].Chunk.SourceURL != url {
		t.Errorf("top hit = %s", hits[0].Chunk.SourceURL)
	}

	// A second run hits the cache instead of the backend.
	before := backend.calls
	result = orch.FetchAndProcess(context.Background(), url)
	if !result.Success {
		t.Fatalf("second FetchAndProcess() failed: %s", result.Message)
	}
	if backend.calls != before {
		t.Errorf("backend called %d more times on a warm cache", backend.calls-before)
	}
}

func TestFetchAndProcess_UnchangedContentNotReindexed(t *testing.T) {
	url := "https://example.com/stable.html"
	backend := &stubFetchBackend{content: map[string]string{
		url: "<html><body><p>stable reference material</p></body></html>",
	}}
	orch := testOrchestrator(t, backend)
	ctx := context.Background()

	if _, err := orch.AddResource(ctx, url, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if result := orch.FetchAndProcess(ctx, url); !result.Success {
		t.Fatalf("FetchAndProcess() failed: %s", result.Message)
	}
	before := orch.IndexStatistics()

	// Warm cache, identical bytes: the chunk set must not grow.
	if result := orch.FetchAndProcess(ctx, url); !result.Success {
		t.Fatalf("second FetchAndProcess() failed: %s", result.Message)
	}
	if got := orch.IndexStatistics().ChunkCount; got != before.ChunkCount {
		t.Errorf("chunk count = %d after reprocess, want %d", got, before.ChunkCount)
	}
	res, _ := orch.Registry().Get(url)
	if res.Status != models.StatusIndexed {
		t.Errorf("status = %s, want indexed", res.Status)
	}

	// A forced refetch of identical content changes nothing either.
	if results := orch.RefreshOutdated(ctx, true); len(results) != 1 || !results[0].Success {
		t.Fatalf("forced refresh results = %+v", results)
	}
	if got := orch.IndexStatistics().ChunkCount; got != before.ChunkCount {
		t.Errorf("chunk count = %d after forced refresh, want %d", got, before.ChunkCount)
	}

	// Changed content goes through the full pipeline again.
	backend.content[url] = "<html><body><p>revised reference material with new sections</p></body></html>"
	if results := orch.RefreshOutdated(ctx, true); len(results) != 1 || !results[0].Success {
		t.Fatalf("refresh after change results = %+v", results)
	}
	if got := orch.IndexStatistics().ChunkCount; got <= before.ChunkCount {
		t.Errorf("chunk count = %d after content change, want > %d", got, before.ChunkCount)
	}
}

func TestFetchAndProcess_FetchFailure(t *testing.T) {
	url := "https://example.com/gone.html"
	orch := testOrchestrator(t, &stubFetchBackend{err: errors.New("connection reset")})

	if _, err := orch.AddResource(context.Background(), url, AddOptions{}); err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}

	result := orch.FetchAndProcess(context.Background(), url)
	if result.Success {
		t.Fatal("FetchAndProcess() succeeded with a broken backend")
	}
	if !strings.Contains(result.Message, "connection reset") {
		t.Errorf("message = %q, want the backend failure", result.Message)
	}

	res, _ := orch.Registry().Get(url)
	if res.Status != models.StatusError {
		t.Errorf("status = %s, want error", res.Status)
	}
	if res.ErrorMessage == "" {
		t.Error("missing error message on resource")
	}
	if res.CacheFile != "" {
		t.Errorf("cache file recorded for a failed fetch: %q", res.CacheFile)
	}
	if res.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", res.RetryCount)
	}

	// Failures keep counting.
	orch.FetchAndProcess(context.Background(), url)
	res, _ = orch.Registry().Get(url)
	if res.RetryCount != 2 {
		t.Errorf("retry count after second failure = %d, want 2", res.RetryCount)
	}
}

func TestFetchAndProcess_SuccessResetsRetries(t *testing.T) {
	url := "https://example.com/flaky.html"
	backend := &stubFetchBackend{err: errors.New("flaky")}
	orch := testOrchestrator(t, backend)

	if _, err := orch.AddResource(context.Background(), url, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	orch.FetchAndProcess(context.Background(), url)

	backend.err = nil
	backend.content = map[string]string{url: "<html><body>recovered content</body></html>"}
	result := orch.FetchAndProcess(context.Background(), url)
	if !result.Success {
		t.Fatalf("recovery failed: %s", result.Message)
	}

	res, _ := orch.Registry().Get(url)
	if res.RetryCount != 0 {
		t.Errorf("retry count = %d, want reset to 0", res.RetryCount)
	}
	if res.ErrorMessage != "" {
		t.Errorf("error message not cleared: %q", res.ErrorMessage)
	}
	if res.Status != models.StatusIndexed {
		t.Errorf("status = %s, want indexed", res.Status)
	}
}

func TestFetchAndProcess_Unregistered(t *testing.T) {
	orch := testOrchestrator(t, &stubFetchBackend{})

	result := orch.FetchAndProcess(context.Background(), "https://example.com/unknown")
	if result.Success {
		t.Fatal("processing an unregistered URL succeeded")
	}
	if result.Message != "resource not registered" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestFetchAndProcess_LockContention(t *testing.T) {
	url := "https://example.com/busy.html"
	orch := testOrchestrator(t, &stubFetchBackend{content: map[string]string{url: "<html>x</html>"}})
	if _, err := orch.AddResource(context.Background(), url, AddOptions{}); err != nil {
		t.Fatal(err)
	}

	// Simulate another worker holding the per-resource lock.
	if !orch.Registry().TryLock(url) {
		t.Fatal("could not take the lock")
	}
	defer orch.Registry().Unlock(url)

	result := orch.FetchAndProcess(context.Background(), url)
	if result.Success {
		t.Fatal("processing succeeded while the resource was locked")
	}
	if result.Message != MsgAlreadyProcessing {
		t.Errorf("message = %q, want %q", result.Message, MsgAlreadyProcessing)
	}

	// The contended run must not mark the resource errored.
	res, _ := orch.Registry().Get(url)
	if res.Status == models.StatusError {
		t.Error("lock contention flagged the resource as errored")
	}
}

func TestPDFExtractionDisabled(t *testing.T) {
	url := "https://example.com/spec.pdf"
	orch := testOrchestrator(t, &stubFetchBackend{content: map[string]string{url: "%PDF-1.4 stub"}})
	orch.Config().PDFExtraction = false

	if _, err := orch.AddResource(context.Background(), url, AddOptions{}); err != nil {
		t.Fatal(err)
	}

	result := orch.FetchAndProcess(context.Background(), url)
	if !result.Success {
		t.Fatalf("FetchAndProcess() failed: %s", result.Message)
	}

	res, _ := orch.Registry().Get(url)
	if res.Status != models.StatusFetched {
		t.Errorf("status = %s, want fetched when pdf extraction is off", res.Status)
	}
	if res.TextFile != "" {
		t.Errorf("text file produced with extraction off: %q", res.TextFile)
	}
}

func TestFetchAllPending(t *testing.T) {
	backend := &stubFetchBackend{content: map[string]string{
		"https://example.com/a.html": "<html>alpha doc</html>",
		"https://example.com/b.html": "<html>beta doc</html>",
	}}
	orch := testOrchestrator(t, backend)

	for _, u := range []string{"https://example.com/a.html", "https://example.com/b.html"} {
		if _, err := orch.AddResource(context.Background(), u, AddOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	// An already indexed resource is not reprocessed.
	orch.FetchAndProcess(context.Background(), "https://example.com/a.html")
	before := backend.calls

	results := orch.FetchAllPending(context.Background())
	if len(results) != 1 {
		t.Fatalf("processed %d resources, want 1", len(results))
	}
	if results[0].URL != "https://example.com/b.html" {
		t.Errorf("processed %s", results[0].URL)
	}
	if backend.calls != before+1 {
		t.Errorf("backend calls = %d, want %d", backend.calls, before+1)
	}
}

func TestRefreshOutdated(t *testing.T) {
	staleURL := "https://example.com/stale.html"
	manualURL := "https://example.com/manual.html"
	freshURL := "https://example.com/fresh.html"

	backend := &stubFetchBackend{content: map[string]string{
		staleURL:  "<html>stale content</html>",
		manualURL: "<html>manual content</html>",
		freshURL:  "<html>fresh content</html>",
	}}
	orch := testOrchestrator(t, backend)
	ctx := context.Background()

	if _, err := orch.AddResource(ctx, staleURL, AddOptions{Type: models.TypeOfficialDocs}); err != nil {
		t.Fatal(err)
	}
	if _, err := orch.AddResource(ctx, manualURL, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := orch.AddResource(ctx, freshURL, AddOptions{Type: models.TypeOfficialDocs}); err != nil {
		t.Fatal(err)
	}

	longAgo := time.Now().UTC().Add(-30 * 24 * time.Hour)
	recently := time.Now().UTC().Add(-time.Hour)
	_ = orch.Registry().Update(staleURL, func(r *models.WebResource) {
		r.LastFetched = &longAgo
		r.Status = models.StatusIndexed
	})
	_ = orch.Registry().Update(manualURL, func(r *models.WebResource) {
		r.LastFetched = &longAgo
		r.Status = models.StatusIndexed
	})
	_ = orch.Registry().Update(freshURL, func(r *models.WebResource) {
		r.LastFetched = &recently
		r.Status = models.StatusIndexed
	})

	results := orch.RefreshOutdated(ctx, false)
	if len(results) != 1 {
		t.Fatalf("refreshed %d resources, want 1", len(results))
	}
	if results[0].URL != staleURL {
		t.Errorf("refreshed %s, want the stale resource", results[0].URL)
	}

	// Force refreshes everything, including manual-interval resources.
	results = orch.RefreshOutdated(ctx, true)
	if len(results) != 3 {
		t.Errorf("forced refresh hit %d resources, want 3", len(results))
	}
}

func TestRefreshOutdated_SkipsExhaustedRetries(t *testing.T) {
	url := "https://example.com/doomed.html"
	orch := testOrchestrator(t, &stubFetchBackend{err: errors.New("always down")})
	ctx := context.Background()

	if _, err := orch.AddResource(ctx, url, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	_ = orch.Registry().Update(url, func(r *models.WebResource) {
		r.Status = models.StatusError
		r.RetryCount = r.MaxRetries
	})

	if results := orch.RefreshOutdated(ctx, true); len(results) != 0 {
		t.Errorf("refreshed %d retry-exhausted resources, want 0", len(results))
	}
}

func TestGetContextForQuery(t *testing.T) {
	url := "https://example.com/concurrency.html"
	backend := &stubFetchBackend{content: map[string]string{
		url: `<html><head><title>Concurrency Patterns</title></head>
<body><p>Worker pools bound the number of goroutines processing a queue.</p></body></html>`,
	}}
	orch := testOrchestrator(t, backend)
	ctx := context.Background()

	if _, err := orch.AddResource(ctx, url, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if result := orch.FetchAndProcess(ctx, url); !result.Success {
		t.Fatalf("FetchAndProcess() failed: %s", result.Message)
	}

	assembled, err := orch.GetContextForQuery(ctx, "worker pools goroutines", 500)
	if err != nil {
		t.Fatalf("GetContextForQuery() error = %v", err)
	}
	if !strings.Contains(assembled, "## Concurrency Patterns") {
		t.Errorf("missing title header: %q", assembled)
	}
	if !strings.Contains(assembled, "goroutines") {
		t.Errorf("missing chunk text: %q", assembled)
	}

	// A tiny budget excludes every segment.
	tiny, err := orch.GetContextForQuery(ctx, "worker pools goroutines", 2)
	if err != nil {
		t.Fatalf("GetContextForQuery() error = %v", err)
	}
	if tiny != "" {
		t.Errorf("tiny budget produced %q", tiny)
	}

	// Memoized result survives until the index changes.
	again, err := orch.GetContextForQuery(ctx, "worker pools goroutines", 500)
	if err != nil {
		t.Fatalf("cached GetContextForQuery() error = %v", err)
	}
	if again != assembled {
		t.Error("cached context differs from the first assembly")
	}
}
