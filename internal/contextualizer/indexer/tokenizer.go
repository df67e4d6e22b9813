package indexer

import (
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// TiktokenTokenizer counts and splits text with the cl100k_base BPE
// encoding. Decoding the encoded token strings reproduces the input
// byte-for-byte.
type TiktokenTokenizer struct {
	codec tokenizer.Codec
}

// NewTiktokenTokenizer creates the production tokenizer.
func NewTiktokenTokenizer() (*TiktokenTokenizer, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &TiktokenTokenizer{codec: codec}, nil
}

func (t *TiktokenTokenizer) Encode(text string) ([]string, error) {
	_, tokens, err := t.codec.Encode(text)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (t *TiktokenTokenizer) Decode(tokens []string) string {
	return strings.Join(tokens, "")
}

func (t *TiktokenTokenizer) Name() string {
	return "cl100k_base"
}

// WordTokenizer splits on whitespace. It is the fallback when the BPE
// tokenizer cannot be constructed and the deterministic choice for tests.
type WordTokenizer struct{}

func NewWordTokenizer() *WordTokenizer { return &WordTokenizer{} }

func (t *WordTokenizer) Encode(text string) ([]string, error) {
	return strings.Fields(text), nil
}

func (t *WordTokenizer) Decode(tokens []string) string {
	return strings.Join(tokens, " ")
}

func (t *WordTokenizer) Name() string {
	return "whitespace"
}
