package pdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"
)

var (
	ErrAllBackendsFailed = errors.New("all pdf backends failed")
	ErrNoTextExtracted   = errors.New("pdf backends yielded no text")
)

// Processor converts a cached PDF into extracted text plus structural
// metadata via a backend fallback chain. Backends are probed once at
// construction; the first one returning usable text wins.
type Processor struct {
	backends []interfaces.PDFBackend
	logger   zerolog.Logger
}

// NewProcessor builds the standard chain: layout-aware, general-purpose,
// basic, then the pdftotext CLI.
func NewProcessor() *Processor {
	return NewProcessorWithBackends(
		NewLayoutBackend(),
		NewPlaintextBackend(),
		NewBasicBackend(),
		NewPdftotextBackend(),
	)
}

// NewProcessorWithBackends builds a processor over an explicit chain.
func NewProcessorWithBackends(backends ...interfaces.PDFBackend) *Processor {
	available := make([]interfaces.PDFBackend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	return &Processor{
		backends: available,
		logger:   util.NewLogger(util.LevelFromEnv()),
	}
}

// Process extracts text from the PDF at path, writing a .txt sidecar plus
// a .meta.json describing the backend and what it found.
func (p *Processor) Process(
	path string,
	extractImages bool,
	extractTables bool,
) (string, *models.ExtractMetadata, error) {
	opts := interfaces.ExtractOptions{Images: extractImages, Tables: extractTables}

	// pdfcpu supplies an authoritative page count up front; validation
	// failures are logged but do not short-circuit the chain, since
	// malformed files often still yield text.
	pageCount := 0
	if err := api.ValidateFile(path, nil); err != nil {
		p.logger.Warn().Err(err).Str("path", path).Msg("pdf failed validation")
	} else if n, err := api.PageCountFile(path); err == nil {
		pageCount = n
	}

	var lastErr error = ErrNoTextExtracted
	for _, backend := range p.backends {
		result, err := backend.Extract(path, opts)
		if err != nil {
			p.logger.Debug().Err(err).Str("backend", backend.Name()).Str("path", path).Msg("pdf backend failed")
			lastErr = err
			continue
		}
		if strings.TrimSpace(result.Text) == "" {
			p.logger.Debug().Str("backend", backend.Name()).Str("path", path).Msg("pdf backend yielded no text")
			lastErr = ErrNoTextExtracted
			continue
		}

		if result.Metadata == nil {
			result.Metadata = &models.ExtractMetadata{Backend: backend.Name()}
		}
		if pageCount > 0 {
			result.Metadata.PageCount = pageCount
		}

		textPath, err := p.writeResult(path, result)
		if err != nil {
			return "", nil, err
		}
		p.logger.Info().
			Str("backend", backend.Name()).
			Str("text_path", textPath).
			Int("page_count", result.Metadata.PageCount).
			Msg("pdf extracted")
		return textPath, result.Metadata, nil
	}

	return "", nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

func (p *Processor) writeResult(pdfPath string, result *interfaces.ExtractResult) (string, error) {
	ext := filepath.Ext(pdfPath)
	textPath := strings.TrimSuffix(pdfPath, ext) + ".txt"

	if err := os.WriteFile(textPath, []byte(result.Text), 0o644); err != nil {
		return "", err
	}

	meta, err := json.MarshalIndent(result.Metadata, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(textPath+".meta.json", meta, 0o644); err != nil {
		return "", err
	}
	return textPath, nil
}
