package embedders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIEmbedder(t *testing.T) {
	tests := []struct {
		name        string
		model       string
		apiKey      string
		expectError bool
		expectedDim int
		expectedMax int
	}{
		{
			name:        "text-embedding-3-small",
			model:       "text-embedding-3-small",
			apiKey:      "test-api-key",
			expectedDim: 1536,
			expectedMax: 8191,
		},
		{
			name:        "text-embedding-3-large",
			model:       "text-embedding-3-large",
			apiKey:      "test-api-key",
			expectedDim: 3072,
			expectedMax: 8191,
		},
		{
			name:        "text-embedding-ada-002",
			model:       "text-embedding-ada-002",
			apiKey:      "test-api-key",
			expectedDim: 1536,
			expectedMax: 8191,
		},
		{
			name:        "unsupported model",
			model:       "unsupported-model",
			apiKey:      "test-api-key",
			expectError: true,
		},
		{
			name:        "missing api key",
			model:       "text-embedding-3-small",
			apiKey:      "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", tt.apiKey)

			embedder, err := NewOpenAIEmbedder(tt.model)
			if tt.expectError {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenAIEmbedder() error = %v", err)
			}

			if embedder.GetModelName() != tt.model {
				t.Errorf("model = %s, want %s", embedder.GetModelName(), tt.model)
			}
			if embedder.GetDimension() != tt.expectedDim {
				t.Errorf("dimension = %d, want %d", embedder.GetDimension(), tt.expectedDim)
			}
			if embedder.GetMaxTokens() != tt.expectedMax {
				t.Errorf("max tokens = %d, want %d", embedder.GetMaxTokens(), tt.expectedMax)
			}
		})
	}
}

func TestOpenAIEmbedder_GenerateEmbedding(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Errorf("authorization header = %q", got)
		}
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		// Newlines are stripped before the content is sent.
		if req.Input != "hello embedding world" {
			t.Errorf("input = %q", req.Input)
		}

		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}], "usage": {"total_tokens": 3}}`))
	}))
	defer srv.Close()

	embedder, err := NewOpenAIEmbedderWithClient("text-embedding-3-small", srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedderWithClient() error = %v", err)
	}

	vec, err := embedder.GenerateEmbedding(context.Background(), "hello\nembedding world")
	if err != nil {
		t.Fatalf("GenerateEmbedding() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("embedding = %v", vec)
	}
}

func TestOpenAIEmbedder_GenerateEmbeddingErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		content string
		wantErr error
	}{
		{
			name:    "empty content",
			content: "",
			handler: func(w http.ResponseWriter, _ *http.Request) {},
			wantErr: ErrContentEmpty,
		},
		{
			name:    "api error status",
			content: "some content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
			wantErr: ErrAPIRequestFailed,
		},
		{
			name:    "empty data array",
			content: "some content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data": []}`))
			},
			wantErr: ErrNoEmbeddingData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			embedder, err := NewOpenAIEmbedderWithClient("text-embedding-3-small", srv.Client(), srv.URL)
			if err != nil {
				t.Fatalf("constructor error = %v", err)
			}

			_, err = embedder.GenerateEmbedding(context.Background(), tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		model       string
		openaiKey   string
		togetherKey string
		wantNil     bool
		wantModel   string
	}{
		{
			name:      "openai model with key",
			model:     "text-embedding-3-small",
			openaiKey: "key",
			wantModel: "text-embedding-3-small",
		},
		{
			name:    "openai model without key",
			model:   "text-embedding-3-small",
			wantNil: true,
		},
		{
			name:        "together model with key",
			model:       "togethercomputer/m2-bert-80M-8k-retrieval",
			togetherKey: "key",
			wantModel:   "togethercomputer/m2-bert-80M-8k-retrieval",
		},
		{
			name:      "together model without its key",
			model:     "togethercomputer/m2-bert-80M-8k-retrieval",
			openaiKey: "key",
			wantNil:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", tt.openaiKey)
			t.Setenv("TOGETHER_API_KEY", tt.togetherKey)

			embedder := Detect(tt.model)
			if tt.wantNil {
				if embedder != nil {
					t.Errorf("Detect() = %v, want nil", embedder)
				}
				return
			}
			if embedder == nil {
				t.Fatal("Detect() = nil")
			}
			if embedder.GetModelName() != tt.wantModel {
				t.Errorf("model = %s, want %s", embedder.GetModelName(), tt.wantModel)
			}
		})
	}
}
