package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"docqa/src/log"
)

const DefaultURL = "http://localhost:11434/api"

// GenerateRequest is the request body for /generate.
type GenerateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse is the response body from /generate.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// EmbeddingRequest is the request body for /embeddings.
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse is the response body from /embeddings.
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Client is a thin HTTP client for the Ollama API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{httpClient: c, baseURL: baseURL}
}

// Generate runs a completion for prompt with the given model.
func (c *Client) Generate(ctx context.Context, model, system, prompt string, options map[string]interface{}) (string, error) {
	reqBody := GenerateRequest{
		Model:   model,
		System:  system,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}

	var result GenerateResponse
	if err := c.post(ctx, "/generate", reqBody, &result); err != nil {
		log.Error(err, "ollama generate failed", "model", model)
		return "", err
	}
	return result.Response, nil
}

// GetEmbedding returns the embedding vector for text under the given model.
func (c *Client) GetEmbedding(ctx context.Context, model, text string) ([]float32, error) {
	reqBody := EmbeddingRequest{Model: model, Prompt: text}

	var result EmbeddingResponse
	if err := c.post(ctx, "/embeddings", reqBody, &result); err != nil {
		log.Error(err, "ollama embedding failed", "model", model)
		return nil, err
	}

	embedding := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, result interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
