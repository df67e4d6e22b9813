package config

import (
	"os"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxParallelFetches = 3
	defaultMaxAgeDays         = 30
	defaultMaxSizeMB          = 500
	defaultChunkSize          = 1000
	defaultOverlap            = 200
	defaultMaxRetries         = 3
)

// CacheSettings control cache retention and version snapshots.
type CacheSettings struct {
	MaxAgeDays     int  `yaml:"max_age_days"`
	MaxSizeMB      int  `yaml:"max_size_mb"`
	VersionControl bool `yaml:"version_control"`
}

// IndexingSettings control chunking and embedding.
type IndexingSettings struct {
	ChunkSize      int    `yaml:"chunk_size"`
	Overlap        int    `yaml:"overlap"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// Config holds all recognized options for the contextualization engine.
type Config struct {
	Enabled            bool                            `yaml:"enabled"`
	AutoFetch          bool                            `yaml:"auto_fetch"`
	AutoIndex          bool                            `yaml:"auto_index"`
	PDFExtraction      bool                            `yaml:"pdf_extraction"`
	ParallelProcessing bool                            `yaml:"parallel_processing"`
	MaxParallelFetches int                             `yaml:"max_parallel_fetches"`
	MaxRetries         int                             `yaml:"max_retries"`
	CacheSettings      CacheSettings                   `yaml:"cache_settings"`
	Indexing           IndexingSettings                `yaml:"indexing"`
	RefreshIntervals   map[models.ResourceType]string  `yaml:"refresh_intervals"`
	BaseDir            string                          `yaml:"base_dir"`
}

// Default returns the configuration used when no file is supplied or a
// field is missing. Configuration problems are resolved with these values,
// never treated as fatal.
func Default() *Config {
	return &Config{
		Enabled:            true,
		AutoFetch:          true,
		AutoIndex:          true,
		PDFExtraction:      true,
		ParallelProcessing: true,
		MaxParallelFetches: defaultMaxParallelFetches,
		MaxRetries:         defaultMaxRetries,
		CacheSettings: CacheSettings{
			MaxAgeDays:     defaultMaxAgeDays,
			MaxSizeMB:      defaultMaxSizeMB,
			VersionControl: true,
		},
		Indexing: IndexingSettings{
			ChunkSize:      defaultChunkSize,
			Overlap:        defaultOverlap,
			EmbeddingModel: "text-embedding-3-small",
		},
		RefreshIntervals: map[models.ResourceType]string{
			models.TypeOfficialDocs: "1w",
			models.TypeAPIReference: "1w",
			models.TypeTutorial:     "1m",
			models.TypeStandard:     "3m",
			models.TypeUserAdded:    models.IntervalManual,
		},
		BaseDir: ".webcontext",
	}
}

// Load reads a YAML config file on top of the defaults. A missing file
// returns the defaults; malformed numeric fields are reset to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

// normalize repairs out-of-range values against the defaults.
func (c *Config) normalize() {
	def := Default()
	if c.MaxParallelFetches <= 0 {
		c.MaxParallelFetches = def.MaxParallelFetches
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.CacheSettings.MaxAgeDays <= 0 {
		c.CacheSettings.MaxAgeDays = def.CacheSettings.MaxAgeDays
	}
	if c.CacheSettings.MaxSizeMB <= 0 {
		c.CacheSettings.MaxSizeMB = def.CacheSettings.MaxSizeMB
	}
	if c.Indexing.ChunkSize <= 0 {
		c.Indexing.ChunkSize = def.Indexing.ChunkSize
	}
	if c.Indexing.Overlap < 0 || c.Indexing.Overlap >= c.Indexing.ChunkSize {
		c.Indexing.Overlap = def.Indexing.Overlap
		if c.Indexing.Overlap >= c.Indexing.ChunkSize {
			c.Indexing.Overlap = 0
		}
	}
	if len(c.RefreshIntervals) == 0 {
		c.RefreshIntervals = def.RefreshIntervals
	}
	if c.BaseDir == "" {
		c.BaseDir = def.BaseDir
	}
}

// RefreshIntervalFor looks up the configured interval for a resource type,
// defaulting to weekly for unknown types.
func (c *Config) RefreshIntervalFor(t models.ResourceType) string {
	if interval, ok := c.RefreshIntervals[t]; ok {
		return interval
	}
	return "1w"
}
