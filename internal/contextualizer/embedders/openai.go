package embedders

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/rs/zerolog"
)

const openaiEndpoint = "https://api.openai.com/v1/embeddings"

var openaiModels = map[string]modelSpec{
	"text-embedding-3-small": {dimension: 1536, maxTokens: 8191},
	"text-embedding-3-large": {dimension: 3072, maxTokens: 8191},
	"text-embedding-ada-002": {dimension: 1536, maxTokens: 8191},
}

// OpenAIEmbedder turns chunk text into vectors via the OpenAI embeddings
// endpoint.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	spec       modelSpec
	httpClient *http.Client
	apiURL     string
	logger     zerolog.Logger
}

type openaiRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format"`
}

// NewOpenAIEmbedder reads OPENAI_API_KEY from the environment.
func NewOpenAIEmbedder(model string) (*OpenAIEmbedder, error) {
	return NewOpenAIEmbedderWithClient(model, nil, "")
}

// NewOpenAIEmbedderWithClient accepts an explicit client and endpoint so
// callers can point the embedder at a local server.
func NewOpenAIEmbedderWithClient(model string, httpClient *http.Client, apiURL string) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	spec, ok := openaiModels[model]
	if !ok {
		return nil, ErrUnsupportedModel
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if apiURL == "" {
		apiURL = openaiEndpoint
	}

	return &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		spec:       spec,
		httpClient: httpClient,
		apiURL:     apiURL,
		logger:     util.NewLogger(util.LevelFromEnv()),
	}, nil
}

// GenerateEmbedding embeds content. Newlines are flattened first; the
// endpoint scores them as significant tokens.
func (o *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, content string) ([]float32, error) {
	input := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	if input == "" {
		return nil, ErrContentEmpty
	}

	body, err := json.Marshal(openaiRequest{
		Input:          input,
		Model:          o.model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}

	vec, tokensUsed, err := postEmbedding(ctx, o.httpClient, o.apiURL, o.apiKey, body)
	if err != nil {
		return nil, err
	}
	o.logger.Debug().Str("model", o.model).Int("tokens_used", tokensUsed).Msg("embedding generated")
	return vec, nil
}

func (o *OpenAIEmbedder) GetModelName() string { return o.model }

func (o *OpenAIEmbedder) GetDimension() int { return o.spec.dimension }

func (o *OpenAIEmbedder) GetMaxTokens() int { return o.spec.maxTokens }
