package parallel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"

	"github.com/google/uuid"
)

const metricsFileName = "metrics.json"

// Metrics accumulates run totals across coordinator invocations and
// persists them as JSON alongside the registry.
type Metrics struct {
	path   string
	totals models.Metrics
	mu     sync.Mutex
}

// LoadMetrics reads previously persisted totals from baseDir, starting
// fresh when none exist.
func LoadMetrics(baseDir string) *Metrics {
	m := &Metrics{path: filepath.Join(baseDir, metricsFileName)}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return m
	}
	_ = json.Unmarshal(data, &m.totals)
	return m
}

// RecordAttempt counts one pipeline attempt and its duration.
func (m *Metrics) RecordAttempt(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totals.Attempts++
	m.totals.TotalDuration += elapsed
	m.totals.AverageDuration = m.totals.TotalDuration / time.Duration(m.totals.Attempts)
}

// RecordSuccess counts one resource that completed the pipeline.
func (m *Metrics) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Successes++
}

// RecordFailure counts one resource whose final attempt failed.
func (m *Metrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Failures++
}

// Snapshot returns a copy of the running totals.
func (m *Metrics) Snapshot() models.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// Persist writes the totals atomically next to the registry.
func (m *Metrics) Persist() error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m.totals, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}

	tmp := m.path + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
