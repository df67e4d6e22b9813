package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"
)

const (
	// HTTP client timeout in seconds.
	defaultHTTPTimeout = 30
	// Retry count passed to the external download tools.
	externalRetries = 2
	// User agent sent by the in-process HTTP backend.
	userAgent = "webcontext/1.0 (+https://github.com/vamseeachanta/webcontext)"
)

var ErrHTTPStatus = errors.New("unexpected HTTP status")

// HTTPBackend downloads with the in-process HTTP client, streaming the
// response body to disk.
type HTTPBackend struct {
	client *http.Client
}

// NewHTTPBackend creates the first-choice fetch backend.
func NewHTTPBackend() *HTTPBackend {
	return &HTTPBackend{
		client: &http.Client{Timeout: defaultHTTPTimeout * time.Second},
	}
}

func (b *HTTPBackend) Name() string { return "http" }

func (b *HTTPBackend) Available() bool { return true }

func (b *HTTPBackend) Fetch(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %d for %s", ErrHTTPStatus, resp.StatusCode, url)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return err
	}
	return out.Close()
}

// WgetBackend shells out to wget with timeout and retry flags.
type WgetBackend struct {
	binary string
}

// NewWgetBackend probes PATH for wget.
func NewWgetBackend() *WgetBackend {
	path, err := exec.LookPath("wget")
	if err != nil {
		return &WgetBackend{}
	}
	return &WgetBackend{binary: path}
}

func (b *WgetBackend) Name() string { return "wget" }

func (b *WgetBackend) Available() bool { return b.binary != "" }

func (b *WgetBackend) Fetch(ctx context.Context, url, destPath string) error {
	cmd := exec.CommandContext(ctx, b.binary,
		fmt.Sprintf("--timeout=%d", defaultHTTPTimeout),
		fmt.Sprintf("--tries=%d", externalRetries),
		"-q",
		"-O", destPath,
		url,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("wget failed: %w: %s", err, string(output))
	}
	return nil
}

// CurlBackend shells out to curl with timeout and retry flags.
type CurlBackend struct {
	binary string
}

// NewCurlBackend probes PATH for curl.
func NewCurlBackend() *CurlBackend {
	path, err := exec.LookPath("curl")
	if err != nil {
		return &CurlBackend{}
	}
	return &CurlBackend{binary: path}
}

func (b *CurlBackend) Name() string { return "curl" }

func (b *CurlBackend) Available() bool { return b.binary != "" }

func (b *CurlBackend) Fetch(ctx context.Context, url, destPath string) error {
	cmd := exec.CommandContext(ctx, b.binary,
		"-L", "-sS", "--fail",
		"--max-time", fmt.Sprintf("%d", defaultHTTPTimeout),
		"--retry", fmt.Sprintf("%d", externalRetries),
		"-A", userAgent,
		"-o", destPath,
		url,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("curl failed: %w: %s", err, string(output))
	}
	return nil
}
