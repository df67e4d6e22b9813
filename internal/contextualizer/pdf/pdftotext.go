package pdf

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
)

// PdftotextBackend shells out to poppler's pdftotext for a single-shot
// layout-preserving dump. OS-level fallback when every in-process backend
// has failed.
type PdftotextBackend struct {
	binary string
}

// NewPdftotextBackend probes PATH for pdftotext.
func NewPdftotextBackend() *PdftotextBackend {
	path, err := exec.LookPath("pdftotext")
	if err != nil {
		return &PdftotextBackend{}
	}
	return &PdftotextBackend{binary: path}
}

func (b *PdftotextBackend) Name() string { return "pdftotext" }

func (b *PdftotextBackend) Available() bool { return b.binary != "" }

func (b *PdftotextBackend) Extract(path string, _ interfaces.ExtractOptions) (*interfaces.ExtractResult, error) {
	cmd := exec.Command(b.binary, "-layout", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	text := string(output)
	return &interfaces.ExtractResult{
		Text: text,
		Metadata: &models.ExtractMetadata{
			Backend:   b.Name(),
			PageCount: pageCountFromDump(text),
		},
	}, nil
}

// pageCountFromDump infers the page count from pdftotext output. Poppler
// terminates every page with a form feed, the last page included, so a
// trailing form feed must not open another page.
func pageCountFromDump(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	n := strings.Count(text, "\f")
	if !strings.HasSuffix(text, "\f") {
		n++
	}
	return n
}
