package fetcher

import (
	"context"
	"crypto/md5" //nolint:gosec // cache keys and change detection, not security
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/rs/zerolog"
)

const (
	// Suffix appended to every cache slot sidecar.
	metaSuffix = ".meta.json"
	// Short hash length used in derived cache names.
	shortHashLen = 8
	bytesPerMB   = 1024 * 1024
	// Timestamp layout for version snapshots; nanosecond precision keeps
	// successive snapshots strictly ordered.
	snapshotLayout = "20060102T150405.000000000"
)

var (
	ErrNoBackendAvailable = errors.New("no fetch backend available")
	ErrAllBackendsFailed  = errors.New("all fetch backends failed")

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// ResourceFetcher acquires URLs into cache slots with backend fallback and
// version history.
type ResourceFetcher struct {
	cacheDir    string
	versionsDir string
	backends    []interfaces.FetchBackend
	logger      zerolog.Logger
}

// New creates a fetcher with the standard backend chain: in-process HTTP,
// then wget, then curl. Unavailable external tools are skipped at probe
// time rather than at call time.
func New(cacheDir, versionsDir string) *ResourceFetcher {
	return NewWithBackends(cacheDir, versionsDir,
		NewHTTPBackend(),
		NewWgetBackend(),
		NewCurlBackend(),
	)
}

// NewWithBackends creates a fetcher with an explicit backend chain.
func NewWithBackends(cacheDir, versionsDir string, backends ...interfaces.FetchBackend) *ResourceFetcher {
	available := make([]interfaces.FetchBackend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	return &ResourceFetcher{
		cacheDir:    cacheDir,
		versionsDir: versionsDir,
		backends:    available,
		logger:      util.NewLogger(util.LevelFromEnv()),
	}
}

// CacheDir returns the directory holding cache slots.
func (f *ResourceFetcher) CacheDir() string {
	return f.cacheDir
}

// DeriveCacheName maps a URL to its cache slot file name. The last
// non-empty path segment is sanitized; when nothing usable remains the
// name falls back to <host>_<8-hex-md5>. A format extension is appended
// when the name has none.
func DeriveCacheName(rawURL string) string {
	name := ""
	host := "resource"

	if u, err := url.Parse(rawURL); err == nil {
		if u.Host != "" {
			host = unsafeChars.ReplaceAllString(u.Host, "_")
		}
		segments := strings.Split(u.Path, "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if segments[i] != "" {
				name = unsafeChars.ReplaceAllString(segments[i], "")
				break
			}
		}
	}

	if strings.Trim(name, "._-") == "" {
		sum := md5.Sum([]byte(rawURL)) //nolint:gosec
		name = fmt.Sprintf("%s_%x", host, sum[:shortHashLen/2])
	}

	if filepath.Ext(name) == "" {
		name += inferExtension(rawURL)
	}
	return name
}

func inferExtension(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "pdf"):
		return ".pdf"
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return ".html"
	default:
		return ".txt"
	}
}

// Fetch acquires the URL into its cache slot. With force=false an existing
// slot is returned without any network access. With versionControl=true an
// existing file is snapshotted into the versions area before overwrite.
func (f *ResourceFetcher) Fetch(
	ctx context.Context,
	rawURL string,
	force bool,
	versionControl bool,
) (string, *models.FetchMetadata, error) {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", nil, err
	}

	name := DeriveCacheName(rawURL)
	cachePath := filepath.Join(f.cacheDir, name)

	if info, err := os.Stat(cachePath); err == nil && !force {
		meta := f.readSidecar(cachePath)
		if meta == nil {
			meta = &models.FetchMetadata{
				URL:       rawURL,
				Method:    "cache",
				Size:      info.Size(),
				FetchedAt: info.ModTime(),
			}
		}
		meta.CacheHit = true
		f.logger.Debug().Str("url", rawURL).Str("path", cachePath).Msg("cache hit")
		return cachePath, meta, nil
	}

	if len(f.backends) == 0 {
		return "", nil, ErrNoBackendAvailable
	}

	tmpPath := cachePath + ".part"
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	var lastErr error
	for _, backend := range f.backends {
		f.logger.Debug().Str("url", rawURL).Str("backend", backend.Name()).Msg("fetch attempt")
		if err := backend.Fetch(ctx, rawURL, tmpPath); err != nil {
			lastErr = err
			continue
		}

		if _, err := os.Stat(cachePath); err == nil && versionControl {
			if err := f.snapshot(cachePath, rawURL); err != nil {
				f.logger.Warn().Err(err).Str("path", cachePath).Msg("version snapshot failed")
			}
		}

		if err := os.Rename(tmpPath, cachePath); err != nil {
			return "", nil, err
		}

		meta, err := f.buildMetadata(rawURL, backend.Name(), cachePath)
		if err != nil {
			return "", nil, err
		}
		if err := writeSidecar(cachePath, meta); err != nil {
			f.logger.Warn().Err(err).Str("path", cachePath).Msg("failed to write cache sidecar")
		}
		return cachePath, meta, nil
	}

	// Only the last attempted backend's failure is surfaced.
	return "", nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

func (f *ResourceFetcher) buildMetadata(rawURL, method, path string) (*models.FetchMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	checksum, err := FileChecksum(path)
	if err != nil {
		return nil, err
	}

	return &models.FetchMetadata{
		URL:         rawURL,
		Method:      method,
		ContentType: contentTypeForExt(filepath.Ext(path)),
		Size:        info.Size(),
		FetchedAt:   time.Now().UTC(),
		Checksum:    checksum,
	}, nil
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".json":
		return "application/json"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// snapshot copies the current cache slot into the versions area with a
// timestamp suffix and a sidecar recording its origin.
func (f *ResourceFetcher) snapshot(cachePath, rawURL string) error {
	if err := os.MkdirAll(f.versionsDir, 0o755); err != nil {
		return err
	}

	info, err := os.Stat(cachePath)
	if err != nil {
		return err
	}

	base := filepath.Base(cachePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	now := time.Now().UTC()
	snapPath := filepath.Join(f.versionsDir, fmt.Sprintf("%s_%s%s", stem, now.Format(snapshotLayout), ext))

	if err := copyFile(cachePath, snapPath); err != nil {
		return err
	}

	meta := models.SnapshotMetadata{
		SourceURL:  rawURL,
		SnapshotAt: now,
		Size:       info.Size(),
	}
	return writeSidecar(snapPath, meta)
}

// CleanCache deletes entries older than maxAgeDays, then removes remaining
// entries oldest-first until the cache fits under maxSizeMB. Sidecars are
// removed together with their slots. It returns the number of slots removed.
func (f *ResourceFetcher) CleanCache(maxAgeDays, maxSizeMB int) (int, error) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	type slot struct {
		path    string
		size    int64
		modTime time.Time
	}

	var slots []slot
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		path := filepath.Join(f.cacheDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			f.removeSlot(path)
			removed++
			continue
		}
		slots = append(slots, slot{path: path, size: info.Size(), modTime: info.ModTime()})
	}

	var total int64
	for _, s := range slots {
		total += s.size
	}

	budget := int64(maxSizeMB) * bytesPerMB
	if total <= budget {
		return removed, nil
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].modTime.Before(slots[j].modTime) })
	for _, s := range slots {
		if total <= budget {
			break
		}
		f.removeSlot(s.path)
		total -= s.size
		removed++
	}
	return removed, nil
}

func (f *ResourceFetcher) removeSlot(path string) {
	if err := os.Remove(path); err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("failed to remove cache entry")
		return
	}
	_ = os.Remove(path + metaSuffix)
	f.logger.Debug().Str("path", path).Msg("removed cache entry")
}

// CacheSize returns the total size in bytes of all cache slots.
func (f *ResourceFetcher) CacheSize() int64 {
	var total int64
	_ = filepath.Walk(f.cacheDir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

func (f *ResourceFetcher) readSidecar(path string) *models.FetchMetadata {
	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		return nil
	}
	var meta models.FetchMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("unreadable cache sidecar")
		return nil
	}
	return &meta
}

func writeSidecar(path string, meta interface{}) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path+metaSuffix, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// FileChecksum returns the md5 hex digest of the file at path.
func FileChecksum(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = in.Close()
	}()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, in); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
