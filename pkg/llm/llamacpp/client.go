package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/careline/internal/types"
)

// Client talks to a llama.cpp server over its native HTTP API. It
// serves both text generation and embeddings.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a client for the llama.cpp server at baseURL.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Ready reports whether the server has finished loading its model.
func (c *Client) Ready() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float32  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	StoppedEOS      bool   `json:"stopped_eos"`
	StoppedLimit    bool   `json:"stopped_limit"`
}

// Generate runs a completion and scores its confidence from how much of
// the token budget the model used before stopping.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (*types.InferenceResult, error) {
	start := time.Now()

	reqBody := completionRequest{
		Prompt:      prompt,
		NPredict:    maxTokens,
		Temperature: temperature,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var compResp completionResponse
	if err := json.Unmarshal(respBody, &compResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &types.InferenceResult{
		Text:            compResp.Content,
		Confidence:      scoreConfidence(compResp.TokensPredicted, maxTokens),
		TokensGenerated: compResp.TokensPredicted,
		Latency:         time.Since(start),
		Model:           c.model,
	}, nil
}

// scoreConfidence estimates answer quality from the completion ratio.
// Very short completions usually mean the model bailed early; saturating
// the budget means the answer was cut off.
func scoreConfidence(generated, budget int) float64 {
	if budget <= 0 || generated <= 0 {
		return 0.3
	}
	ratio := float64(generated) / float64(budget)
	switch {
	case ratio < 0.1:
		return 0.3
	case ratio < 0.3:
		return 0.6
	case ratio >= 1.0:
		return 0.8
	default:
		return 0.9
	}
}

type embeddingRequest struct {
	Content string `json:"content"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Content: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	return embResp.Embedding, nil
}

var (
	_ types.LocalEngine = (*Client)(nil)
	_ types.Embedder    = (*Client)(nil)
)
