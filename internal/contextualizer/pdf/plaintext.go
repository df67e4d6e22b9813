package pdf

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"

	"github.com/ledongthuc/pdf"
)

var imageObjectPattern = regexp.MustCompile(`/Subtype\s*/Image`)

// PlaintextBackend extracts per-page plain text and, when asked, counts
// embedded image objects so callers know how much content text extraction
// left behind.
type PlaintextBackend struct{}

func NewPlaintextBackend() *PlaintextBackend { return &PlaintextBackend{} }

func (b *PlaintextBackend) Name() string { return "plaintext" }

func (b *PlaintextBackend) Available() bool { return true }

func (b *PlaintextBackend) Extract(path string, opts interfaces.ExtractOptions) (*interfaces.ExtractResult, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var sb strings.Builder
	pageCount := r.NumPage()

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		p := r.Page(pageNum)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		sb.WriteString(pageDelimiter(pageNum))
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	images := 0
	if opts.Images {
		images = countImageObjects(path)
	}

	return &interfaces.ExtractResult{
		Text: sb.String(),
		Metadata: &models.ExtractMetadata{
			Backend:     b.Name(),
			PageCount:   pageCount,
			ImagesFound: images,
		},
	}, nil
}

// countImageObjects scans the raw PDF for image XObjects. A structural
// parse is not needed for a count, and raw scanning also works on files
// the object parser chokes on.
func countImageObjects(path string) int {
	in, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer func() {
		_ = in.Close()
	}()

	data, err := io.ReadAll(in)
	if err != nil {
		return 0
	}
	return len(imageObjectPattern.FindAll(data, -1))
}

// BasicBackend dumps the whole document's plain text in one shot, with no
// page structure. Last in-process resort before the CLI fallback.
type BasicBackend struct{}

func NewBasicBackend() *BasicBackend { return &BasicBackend{} }

func (b *BasicBackend) Name() string { return "basic" }

func (b *BasicBackend) Available() bool { return true }

func (b *BasicBackend) Extract(path string, _ interfaces.ExtractOptions) (*interfaces.ExtractResult, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	return &interfaces.ExtractResult{
		Text: string(data),
		Metadata: &models.ExtractMetadata{
			Backend:   b.Name(),
			PageCount: r.NumPage(),
		},
	}, nil
}
