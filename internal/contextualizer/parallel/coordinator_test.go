package parallel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/config"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/fetcher"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/indexer"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/orchestrator"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/pdf"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/registry"
)

// stubFetchBackend serves canned bytes per URL, counting calls.
type stubFetchBackend struct {
	content map[string]string
	err     error
	calls   atomic.Int32
}

func (b *stubFetchBackend) Name() string    { return "stub" }
func (b *stubFetchBackend) Available() bool { return true }

func (b *stubFetchBackend) Fetch(_ context.Context, url, destPath string) error {
	b.calls.Add(1)
	if b.err != nil {
		return b.err
	}
	body, ok := b.content[url]
	if !ok {
		return errors.New("no such document")
	}
	return os.WriteFile(destPath, []byte(body), 0o644)
}

func testCoordinator(t *testing.T, backend *stubFetchBackend) *Coordinator {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.BaseDir = base
	cfg.CacheSettings.VersionControl = false

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

	orch := orchestrator.NewWithComponents(cfg, reg, f, pdf.NewProcessorWithBackends(), idx)
	c := New(orch)
	c.retryDelay = 0
	return c
}

func addResource(t *testing.T, c *Coordinator, url string, opts orchestrator.AddOptions) {
	t.Helper()
	if _, err := c.orch.AddResource(context.Background(), url, opts); err != nil {
		t.Fatalf("AddResource(%s) error = %v", url, err)
	}
}

func TestFetchResourcesParallel(t *testing.T) {
	urls := map[string]string{
		"https://example.com/a.html": "<html>alpha</html>",
		"https://example.com/b.html": "<html>beta</html>",
		"https://example.com/c.html": "<html>gamma</html>",
	}
	backend := &stubFetchBackend{content: urls}
	c := testCoordinator(t, backend)

	var submitted []string
	for url := range urls {
		addResource(t, c, url, orchestrator.AddOptions{Priority: 5})
		submitted = append(submitted, url)
	}

	results := c.FetchResourcesParallel(context.Background(), submitted, 0)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("%s failed: %s", r.URL, r.Message)
		}
	}

	for url := range urls {
		res, _ := c.orch.Registry().Get(url)
		if res.Status != models.StatusIndexed {
			t.Errorf("%s status = %s, want indexed", url, res.Status)
		}
	}

	m := c.Metrics()
	if m.Attempts != 3 || m.Successes != 3 || m.Failures != 0 {
		t.Errorf("metrics = %+v", m)
	}

	// Metrics survive the run on disk.
	if _, err := os.Stat(filepath.Join(c.orch.Config().BaseDir, metricsFileName)); err != nil {
		t.Errorf("metrics file missing: %v", err)
	}
}

func TestFetchResourcesParallel_PriorityThreshold(t *testing.T) {
	backend := &stubFetchBackend{content: map[string]string{
		"https://example.com/hi.html": "<html>high priority</html>",
		"https://example.com/lo.html": "<html>low priority</html>",
	}}
	c := testCoordinator(t, backend)

	addResource(t, c, "https://example.com/hi.html", orchestrator.AddOptions{Priority: 8})
	addResource(t, c, "https://example.com/lo.html", orchestrator.AddOptions{Priority: 2})

	results := c.FetchResourcesParallel(context.Background(),
		[]string{"https://example.com/hi.html", "https://example.com/lo.html"}, 5)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].URL != "https://example.com/hi.html" {
		t.Errorf("processed %s, want the high-priority resource", results[0].URL)
	}

	res, _ := c.orch.Registry().Get("https://example.com/lo.html")
	if res.Status != models.StatusPending {
		t.Errorf("low-priority resource reached %s", res.Status)
	}
}

func TestFetchResourcesParallel_Unregistered(t *testing.T) {
	c := testCoordinator(t, &stubFetchBackend{})

	results := c.FetchResourcesParallel(context.Background(), []string{"https://example.com/ghost"}, 0)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Success {
		t.Error("unregistered URL reported success")
	}
	if results[0].Message != "resource not registered" {
		t.Errorf("message = %q", results[0].Message)
	}
}

func TestDependenciesProcessedFirst(t *testing.T) {
	depURL := "https://example.com/base.html"
	mainURL := "https://example.com/extension.html"
	backend := &stubFetchBackend{content: map[string]string{
		depURL:  "<html>base document</html>",
		mainURL: "<html>extension document</html>",
	}}
	c := testCoordinator(t, backend)

	addResource(t, c, depURL, orchestrator.AddOptions{})
	addResource(t, c, mainURL, orchestrator.AddOptions{Dependencies: []string{depURL}})

	// Only the dependent resource is submitted; its dependency must be
	// driven through the pipeline anyway.
	results := c.FetchResourcesParallel(context.Background(), []string{mainURL}, 0)
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("results = %+v", results)
	}

	dep, _ := c.orch.Registry().Get(depURL)
	if !dep.Status.AtLeast(models.StatusFetched) {
		t.Errorf("dependency status = %s, want at least fetched", dep.Status)
	}
}

func TestProcessWithRetry_FailuresRetried(t *testing.T) {
	url := "https://example.com/down.html"
	backend := &stubFetchBackend{err: errors.New("connection refused")}
	c := testCoordinator(t, backend)

	addResource(t, c, url, orchestrator.AddOptions{})

	results := c.FetchResourcesParallel(context.Background(), []string{url}, 0)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Success {
		t.Fatal("a permanently failing resource reported success")
	}

	// One fetch per attempt, up to the configured retry limit.
	if got := backend.calls.Load(); got != int32(c.maxRetries) {
		t.Errorf("backend calls = %d, want %d", got, c.maxRetries)
	}

	m := c.Metrics()
	if m.Attempts != c.maxRetries {
		t.Errorf("attempts = %d, want %d", m.Attempts, c.maxRetries)
	}
	if m.Failures != 1 || m.Successes != 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestProcessWithRetry_LockContentionShortCircuits(t *testing.T) {
	url := "https://example.com/busy.html"
	backend := &stubFetchBackend{content: map[string]string{url: "<html>busy</html>"}}
	c := testCoordinator(t, backend)

	addResource(t, c, url, orchestrator.AddOptions{})

	if !c.orch.Registry().TryLock(url) {
		t.Fatal("could not take the lock")
	}
	defer c.orch.Registry().Unlock(url)

	result := c.processWithRetry(context.Background(), url)
	if result.Message != orchestrator.MsgAlreadyProcessing {
		t.Fatalf("message = %q, want %q", result.Message, orchestrator.MsgAlreadyProcessing)
	}
	// Contention is a skip: nothing counted, nothing recorded as failed.
	if m := c.Metrics(); m.Attempts != 0 || m.Failures != 0 || m.Successes != 0 {
		t.Errorf("metrics = %+v, want all zero", m)
	}
}

func TestMetricsPersistence(t *testing.T) {
	base := t.TempDir()

	m := LoadMetrics(base)
	m.RecordAttempt(100 * time.Millisecond)
	m.RecordAttempt(300 * time.Millisecond)
	m.RecordSuccess()
	m.RecordFailure()
	if err := m.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	loaded := LoadMetrics(base).Snapshot()
	if loaded.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", loaded.Attempts)
	}
	if loaded.Successes != 1 || loaded.Failures != 1 {
		t.Errorf("totals = %+v", loaded)
	}
	if loaded.AverageDuration != 200*time.Millisecond {
		t.Errorf("average = %v, want 200ms", loaded.AverageDuration)
	}
	if loaded.TotalDuration != 400*time.Millisecond {
		t.Errorf("total = %v, want 400ms", loaded.TotalDuration)
	}
}
