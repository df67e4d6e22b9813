// Package extract turns non-PDF cache slots into the uniform .txt files
// the indexer reads. HTML is converted to markdown; markdown, JSON and
// plain text pass through unchanged.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/pkg/util"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Extractor converts cached non-PDF documents into indexable text.
type Extractor struct {
	converter *md.Converter
	logger    zerolog.Logger
}

// New creates an extractor with a default HTML-to-markdown converter.
func New() *Extractor {
	return &Extractor{
		converter: md.NewConverter("", true, nil),
		logger:    util.NewLogger(util.LevelFromEnv()),
	}
}

// Process writes the text form of the cache slot at path to a .txt file
// alongside it and returns the new path. Non-HTML content is copied as-is.
func (e *Extractor) Process(path string, contentType models.ContentType) (string, *models.ExtractMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	meta := &models.ExtractMetadata{Backend: "passthrough"}
	text := string(data)

	if contentType == models.ContentHTML {
		converted, title, err := e.htmlToText(text)
		if err != nil {
			// Unparseable HTML still gets indexed raw rather than failing
			// the resource.
			e.logger.Warn().Err(err).Str("path", path).Msg("html conversion failed, indexing raw content")
		} else {
			text = converted
			meta.Backend = "html-to-markdown"
			meta.Title = title
		}
	}

	// A .txt slot is its own text file; everything else gets a sibling.
	ext := filepath.Ext(path)
	textPath := strings.TrimSuffix(path, ext) + ".txt"

	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return "", nil, err
	}
	return textPath, meta, nil
}

func (e *Extractor) htmlToText(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	converted, err := e.converter.ConvertString(html)
	if err != nil {
		return "", "", err
	}
	return converted, title, nil
}
