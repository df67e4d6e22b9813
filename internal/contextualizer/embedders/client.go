package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const requestTimeout = 30 * time.Second

// modelSpec pairs a model's vector dimension with its input token ceiling.
type modelSpec struct {
	dimension int
	maxTokens int
}

// embeddingResponse is the OpenAI-compatible wire shape both providers
// return. Only the fields consumed here are declared.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// postEmbedding sends an OpenAI-style embedding request and returns the
// first vector plus the reported token usage.
func postEmbedding(ctx context.Context, client *http.Client, url, apiKey string, body []byte) ([]float32, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status %d", ErrAPIRequestFailed, resp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, err
	}
	if len(parsed.Data) == 0 {
		return nil, 0, ErrNoEmbeddingData
	}
	return parsed.Data[0].Embedding, parsed.Usage.TotalTokens, nil
}
