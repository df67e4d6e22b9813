package orchestrator

import (
	"github.com/vamseeachanta/webcontext/internal/contextualizer/history"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
)

// GenerateStatusReport counts resources per status and type, measures the
// cache on disk, and lists errored resources with their retry state.
func (o *Orchestrator) GenerateStatusReport() *models.StatusReport {
	report := &models.StatusReport{
		ByStatus: make(map[models.ResourceStatus]int),
		ByType:   make(map[models.ResourceType]int),
	}

	for _, res := range o.reg.All() {
		report.Total++
		report.ByStatus[res.Status]++
		report.ByType[res.Type]++

		if res.Status == models.StatusError {
			report.Errored = append(report.Errored, models.ErroredResource{
				URL:          res.URL,
				ErrorMessage: res.ErrorMessage,
				RetryCount:   res.RetryCount,
				MaxRetries:   res.MaxRetries,
			})
		}
	}

	report.CacheSizeBytes = o.fetcher.CacheSize()
	return report
}

// IndexStatistics exposes corpus totals for reporting.
func (o *Orchestrator) IndexStatistics() models.IndexStatistics {
	return o.index.Statistics()
}

// FetchHistory summarizes the fetch ledger, or returns nil when the ledger
// is unavailable.
func (o *Orchestrator) FetchHistory() *history.Summary {
	if o.ledger == nil {
		return nil
	}
	summary, err := o.ledger.Summarize()
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to summarize fetch history")
		return nil
	}
	return summary
}

// RecentFetchFailures lists the newest failed fetch attempts from the
// ledger, or nothing when the ledger is unavailable.
func (o *Orchestrator) RecentFetchFailures(limit int) []history.Attempt {
	if o.ledger == nil {
		return nil
	}
	failures, err := o.ledger.RecentFailures(limit)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to read fetch failures")
		return nil
	}
	return failures
}

// CleanCache applies the configured retention policy to the cache area.
func (o *Orchestrator) CleanCache() (int, error) {
	return o.fetcher.CleanCache(o.cfg.CacheSettings.MaxAgeDays, o.cfg.CacheSettings.MaxSizeMB)
}
