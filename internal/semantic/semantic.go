// Package semantic turns text into sentence embeddings and compares them.
// Scoring a free-text answer means encoding it next to the reference
// answer and measuring how closely the two vectors point the same way.
package semantic

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// Encoder produces a fixed-dimension, L2-normalized vector for a piece of
// text. Empty text is valid input and yields a degenerate vector.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Client wraps an OpenAI-compatible embeddings API.
type Client struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

// NewClient creates an embeddings client. Which embedding model to use is
// configuration, not contract; it only has to produce directionally
// meaningful normalized vectors for general English sentences.
func NewClient(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: openai.EmbeddingModel(modelName),
	}
}

// Encode requests an embedding for the given text and L2-normalizes it.
// Empty text is embedded locally as a zero vector; embeddings APIs reject
// empty input, and an empty answer must still score.
func (c *Client) Encode(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return []float32{0}, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API call: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings API returned no data")
	}
	return l2Normalize(resp.Data[0].Embedding), nil
}

// Ping verifies the embeddings endpoint is reachable and the model works.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Encode(ctx, "ping")
	return err
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	mag := math.Sqrt(sum)
	if mag == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}

// Cosine returns the cosine similarity of two vectors, in [-1, 1]. It does
// not assume the inputs are normalized. A zero-magnitude vector or a
// dimension mismatch yields 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Normalize maps a raw cosine similarity from [-1, 1] onto [0, 1].
func Normalize(raw float64) float64 {
	return (raw + 1) / 2
}

// Score encodes both texts and returns the raw cosine similarity together
// with its normalized form.
func Score(ctx context.Context, enc Encoder, text, reference string) (raw, normalized float64, err error) {
	a, err := enc.Encode(ctx, text)
	if err != nil {
		return 0, 0, err
	}
	b, err := enc.Encode(ctx, reference)
	if err != nil {
		return 0, 0, err
	}
	raw = Cosine(a, b)
	return raw, Normalize(raw), nil
}
