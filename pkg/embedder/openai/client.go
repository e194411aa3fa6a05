// Package openai implements embedder.Provider against the OpenAI-compatible
// Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/memscribe/memscribe/pkg/embedder"
)

// Client is an OpenAI-compatible embedder.Provider.
type Client struct {
	client     *openai.Client
	model      string
	dimensions int
}

// Config configures a Client. APIKey is required; Model and BaseURL default
// to OpenAI's text-embedding-3-small and official endpoint.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedder: api key is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}

	return &Client{
		client:     openai.NewClientWithConfig(conf),
		model:      model,
		dimensions: dims,
	}, nil
}

// EmbedBatch satisfies embedder.Provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, 0, classifyErr(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("embedder: unexpected result count (got %d, want %d)", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, resp.Usage.TotalTokens, nil
}

func (c *Client) Dimension() int    { return c.dimensions }
func (c *Client) ModelName() string { return c.model }
func (c *Client) Close() error      { return nil }

// classifyErr maps transport/API errors onto the Embedder contract's two
// failure shapes (§4.2): EmbedderUnavailable(retryable) and
// EmbedderQuotaExceeded(retryable-after).
func classifyErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &embedder.QuotaExceededError{RetryAfterSeconds: 30, Err: err}
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return &embedder.UnavailableError{Retryable: true, Err: err}
		case http.StatusUnauthorized, http.StatusBadRequest:
			return &embedder.UnavailableError{Retryable: false, Err: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &embedder.UnavailableError{Retryable: true, Err: err}
	}
	return &embedder.UnavailableError{Retryable: true, Err: err}
}
