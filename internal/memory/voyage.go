package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// voyageEmbeddingsURL is Voyage AI's embeddings endpoint. NewVoyageEmbedder
// copies it into VoyageEmbedder's baseURL field, so tests can point that
// field at an httptest server.
const voyageEmbeddingsURL = "https://api.voyageai.com/v1/embeddings"

// voyageDimensions are the known output dimensions per model, reported by
// Dimension; Embed itself trusts whatever length the API returns.
var voyageDimensions = map[string]int{
	"voyage-3-lite":    512,
	"voyage-3":         1024,
	"voyage-3-large":   2048,
	"voyage-code-3":    1536,
	"voyage-finance-2": 1024,
	"voyage-law-2":     1024,
}

// VoyageEmbedder implements Embedder against the Voyage AI embeddings API
// over plain net/http — the pack carries no Voyage client library, and the
// teacher's own internal/embeddings/voyage.go reaches for net/http
// directly rather than introducing one.
type VoyageEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewVoyageEmbedder builds a VoyageEmbedder. model defaults to
// "voyage-3-lite" when empty.
func NewVoyageEmbedder(apiKey, model string) *VoyageEmbedder {
	if model == "" {
		model = "voyage-3-lite"
	}
	return &VoyageEmbedder{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: voyageEmbeddingsURL,
		apiKey:  apiKey,
		model:   model,
	}
}

// Dimension returns the known output width for the embedder's model, or 0
// if the model is unrecognized.
func (e *VoyageEmbedder) Dimension() int {
	return voyageDimensions[e.model]
}

type voyageEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed satisfies the Embedder interface with a single-text call.
func (e *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("voyage embedder: no API key configured")
	}

	body, err := json.Marshal(voyageEmbedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("voyage embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voyage embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voyage embedder: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyage embedder: API returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed voyageEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("voyage embedder: parse response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("voyage embedder: no embedding returned")
	}
	return parsed.Data[0].Embedding, nil
}

var _ Embedder = (*VoyageEmbedder)(nil)
