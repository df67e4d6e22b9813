package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrResourceNotFound = errors.New("resource not found in registry")

// Registry owns the url -> WebResource map. All mutation goes through it;
// Save rewrites the backing JSON document atomically so readers never see
// a partially written file.
type Registry struct {
	path      string
	resources map[string]*models.WebResource
	locks     map[string]*sync.Mutex
	mu        sync.RWMutex
	lockMu    sync.Mutex
	logger    zerolog.Logger
}

// New creates a registry backed by the JSON document at path, loading any
// existing state.
func New(path string) (*Registry, error) {
	r := &Registry{
		path:      path,
		resources: make(map[string]*models.WebResource),
		locks:     make(map[string]*sync.Mutex),
		logger:    util.NewLogger(util.LevelFromEnv()),
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	resources := make(map[string]*models.WebResource)
	if err := json.Unmarshal(data, &resources); err != nil {
		r.logger.Error().Err(err).Str("path", r.path).Msg("failed to parse registry file")
		return err
	}

	r.resources = resources
	return nil
}

// Save writes the registry to disk via a temp file and rename.
func (r *Registry) Save() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.resources, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	tmp := r.path + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Get returns a copy of the resource so callers outside a lock cannot
// mutate shared state.
func (r *Registry) Get(url string) (models.WebResource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[url]
	if !ok {
		return models.WebResource{}, false
	}
	return *res, true
}

// Put inserts or replaces a resource.
func (r *Registry) Put(res *models.WebResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *res
	r.resources[res.URL] = &copied
}

// Update applies fn to the resource under the registry lock.
func (r *Registry) Update(url string, fn func(*models.WebResource)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[url]
	if !ok {
		return ErrResourceNotFound
	}
	fn(res)
	return nil
}

// Has reports whether the URL is registered.
func (r *Registry) Has(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resources[url]
	return ok
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}

// All returns copies of every resource, sorted by descending priority with
// URL as the tiebreaker so iteration order is deterministic.
func (r *Registry) All() []models.WebResource {
	r.mu.RLock()
	out := make([]models.WebResource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, *res)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// TryLock attempts to acquire the per-URL processing lock without
// blocking. A false return means the resource is already being processed.
func (r *Registry) TryLock(url string) bool {
	r.lockMu.Lock()
	m, ok := r.locks[url]
	if !ok {
		m = &sync.Mutex{}
		r.locks[url] = m
	}
	r.lockMu.Unlock()

	return m.TryLock()
}

// Unlock releases the per-URL processing lock.
func (r *Registry) Unlock(url string) {
	r.lockMu.Lock()
	m, ok := r.locks[url]
	r.lockMu.Unlock()
	if ok {
		m.Unlock()
	}
}
