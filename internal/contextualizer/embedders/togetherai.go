package embedders

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
)

const togetherEndpoint = "https://api.together.xyz/v1/embeddings"

var togetherModels = map[string]modelSpec{
	"togethercomputer/m2-bert-80M-8k-retrieval":  {dimension: 768, maxTokens: 8192},
	"togethercomputer/m2-bert-80M-32k-retrieval": {dimension: 768, maxTokens: 32768},
}

// TogetherAIEmbedder speaks the same OpenAI-compatible wire format against
// Together AI's retrieval models.
type TogetherAIEmbedder struct {
	apiKey     string
	model      string
	spec       modelSpec
	httpClient *http.Client
	apiURL     string
}

type togetherRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// NewTogetherAIEmbedder reads TOGETHER_API_KEY from the environment.
func NewTogetherAIEmbedder(model string) (*TogetherAIEmbedder, error) {
	return NewTogetherAIEmbedderWithClient(model, nil, "")
}

// NewTogetherAIEmbedderWithClient accepts an explicit client and endpoint
// so callers can point the embedder at a local server.
func NewTogetherAIEmbedderWithClient(
	model string,
	httpClient *http.Client,
	apiURL string,
) (*TogetherAIEmbedder, error) {
	apiKey := os.Getenv("TOGETHER_API_KEY")
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	spec, ok := togetherModels[model]
	if !ok {
		return nil, ErrUnsupportedModel
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if apiURL == "" {
		apiURL = togetherEndpoint
	}

	return &TogetherAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		spec:       spec,
		httpClient: httpClient,
		apiURL:     apiURL,
	}, nil
}

func (t *TogetherAIEmbedder) GenerateEmbedding(ctx context.Context, content string) ([]float32, error) {
	input := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	if input == "" {
		return nil, ErrContentEmpty
	}

	body, err := json.Marshal(togetherRequest{Input: input, Model: t.model})
	if err != nil {
		return nil, err
	}

	vec, _, err := postEmbedding(ctx, t.httpClient, t.apiURL, t.apiKey, body)
	return vec, err
}

func (t *TogetherAIEmbedder) GetModelName() string { return t.model }

func (t *TogetherAIEmbedder) GetDimension() int { return t.spec.dimension }

func (t *TogetherAIEmbedder) GetMaxTokens() int { return t.spec.maxTokens }
