package indexer

import (
	"errors"
	"regexp"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/interfaces"
)

var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrInvalidSize    = errors.New("chunk size must be positive")
	ErrInvalidOverlap = errors.New("overlap must be between 0 and chunk size")

	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n+`)
)

// Piece is one chunk of text produced by the chunker, before it is given
// an identity by the indexer.
type Piece struct {
	Text       string
	TokenCount int
}

// Chunker splits extracted text on paragraph boundaries, greedily
// accumulating whole paragraphs up to the chunk size. Oversized paragraphs
// are hard-split into fixed token windows advancing by size-overlap, and
// each new chunk is prefixed with the trailing overlap tokens of its
// predecessor.
type Chunker struct {
	tok interfaces.Tokenizer
}

// NewChunker creates a chunker over the given tokenizer.
func NewChunker(tok interfaces.Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// ChunkText splits text into pieces of at most chunkSize tokens.
func (c *Chunker) ChunkText(text string, chunkSize, overlap int) ([]Piece, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}
	if chunkSize <= 0 {
		return nil, ErrInvalidSize
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, ErrInvalidOverlap
	}

	var pieces []Piece
	var current []string
	var carry []string

	flush := func() {
		if len(current) > 0 {
			pieces = append(pieces, Piece{Text: c.tok.Decode(current), TokenCount: len(current)})
			carry = overlapTail(current, overlap)
			current = nil
		}
	}

	for _, para := range paragraphSplit.Split(text, -1) {
		tokens, err := c.tok.Encode(para)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			continue
		}

		if len(tokens) > chunkSize {
			flush()
			c.hardSplit(tokens, chunkSize, overlap, &pieces)
			carry = overlapTail(tokens, overlap)
			continue
		}

		if len(current)+len(tokens) > chunkSize {
			flush()
		}
		if len(current) == 0 && len(carry) > 0 {
			// Trim the carried prefix so the chunk never exceeds the budget.
			prefix := carry
			if len(prefix)+len(tokens) > chunkSize {
				prefix = prefix[len(prefix)+len(tokens)-chunkSize:]
			}
			current = append(current, prefix...)
			carry = nil
		}
		current = append(current, tokens...)
	}

	flush()
	return pieces, nil
}

// hardSplit windows an oversized paragraph into chunkSize-token pieces
// advancing by chunkSize-overlap.
func (c *Chunker) hardSplit(tokens []string, chunkSize, overlap int, pieces *[]Piece) {
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	for start := 0; start < len(tokens); start += step {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		*pieces = append(*pieces, Piece{Text: c.tok.Decode(window), TokenCount: len(window)})
		if end == len(tokens) {
			break
		}
	}
}

func overlapTail(tokens []string, overlap int) []string {
	if overlap == 0 {
		return nil
	}
	if len(tokens) <= overlap {
		return append([]string(nil), tokens...)
	}
	return append([]string(nil), tokens[len(tokens)-overlap:]...)
}
