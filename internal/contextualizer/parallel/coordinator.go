// Package parallel runs the orchestrator pipeline over a bounded worker
// pool with dependency ordering, retries and run metrics.
package parallel

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/orchestrator"
	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/rs/zerolog"
)

// Fixed delay between retry attempts. Workers block on it deliberately;
// each worker owns exactly one resource at a time.
const defaultRetryDelay = 2 * time.Second

// Coordinator wraps the orchestrator with a bounded worker pool.
type Coordinator struct {
	orch       *orchestrator.Orchestrator
	workers    int
	maxRetries int
	retryDelay time.Duration
	metrics    *Metrics
	logger     zerolog.Logger
}

// New creates a coordinator sized from the orchestrator's configuration,
// loading any previously persisted metrics.
func New(orch *orchestrator.Orchestrator) *Coordinator {
	cfg := orch.Config()
	return &Coordinator{
		orch:       orch,
		workers:    cfg.MaxParallelFetches,
		maxRetries: cfg.MaxRetries,
		retryDelay: defaultRetryDelay,
		metrics:    LoadMetrics(cfg.BaseDir),
		logger:     util.NewLogger(util.LevelFromEnv()),
	}
}

// Metrics returns the running totals for this coordinator.
func (c *Coordinator) Metrics() models.Metrics {
	return c.metrics.Snapshot()
}

// FetchResourcesParallel processes the given URLs over the worker pool.
// Resources below priorityThreshold are skipped; the rest are submitted in
// descending-priority order. Per-URL results are returned in completion
// order.
func (c *Coordinator) FetchResourcesParallel(
	ctx context.Context,
	urls []string,
	priorityThreshold int,
) []models.ProcessResult {
	reg := c.orch.Registry()

	type queued struct {
		url      string
		priority int
	}
	var queue []queued
	var results []models.ProcessResult

	for _, url := range urls {
		res, ok := reg.Get(url)
		if !ok {
			results = append(results, models.ProcessResult{URL: url, Success: false, Message: "resource not registered"})
			continue
		}
		if res.Priority < priorityThreshold {
			c.logger.Debug().Str("url", url).Int("priority", res.Priority).Msg("below priority threshold, skipped")
			continue
		}
		queue = append(queue, queued{url: url, priority: res.Priority})
	}

	sort.SliceStable(queue, func(i, j int) bool { return queue[i].priority > queue[j].priority })

	jobs := make(chan string, len(queue))
	resultChan := make(chan models.ProcessResult, len(queue))

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				resultChan <- c.processWithRetry(ctx, url)
			}
		}()
	}

	for _, q := range queue {
		jobs <- q.url
	}
	close(jobs)

	wg.Wait()
	close(resultChan)

	for result := range resultChan {
		results = append(results, result)
	}

	if err := c.metrics.Persist(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist metrics")
	}
	return results
}

// processWithRetry drives declared dependencies first, then retries the
// resource itself up to maxRetries times with a fixed delay. Only the
// final attempt's failure is surfaced. Lock contention short-circuits:
// someone else already owns the work.
func (c *Coordinator) processWithRetry(ctx context.Context, url string) models.ProcessResult {
	c.ensureDependencies(ctx, url)

	var result models.ProcessResult
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result = c.orch.FetchAndProcess(ctx, url)
		if result.Message == orchestrator.MsgAlreadyProcessing {
			// Another worker owns this resource. Not an attempt of ours,
			// and certainly not a failure.
			return result
		}
		c.metrics.RecordAttempt(result.Duration)

		if result.Success {
			break
		}
		c.logger.Warn().
			Str("url", url).
			Int("attempt", attempt).
			Int("max_retries", c.maxRetries).
			Str("message", result.Message).
			Msg("attempt failed")
		if attempt < c.maxRetries {
			time.Sleep(c.retryDelay)
		}
	}

	if result.Success {
		c.metrics.RecordSuccess()
	} else {
		c.metrics.RecordFailure()
	}
	return result
}

// ensureDependencies drives each declared dependency that has not reached
// fetched yet. Dependency failures are logged, not fatal: the dependent
// resource surfaces its own failure if the missing input matters.
func (c *Coordinator) ensureDependencies(ctx context.Context, url string) {
	res, ok := c.orch.Registry().Get(url)
	if !ok {
		return
	}

	for _, dep := range res.Dependencies {
		depRes, ok := c.orch.Registry().Get(dep)
		if !ok {
			c.logger.Warn().Str("url", url).Str("dependency", dep).Msg("unknown dependency")
			continue
		}
		if depRes.Status.AtLeast(models.StatusFetched) {
			continue
		}

		c.logger.Info().Str("url", url).Str("dependency", dep).Msg("processing dependency first")
		depResult := c.orch.FetchAndProcess(ctx, dep)
		if !depResult.Success {
			c.logger.Warn().Str("dependency", dep).Str("message", depResult.Message).Msg("dependency processing failed")
		}
	}
}
