// Package openai embeds retrieval queries through an OpenAI-compatible
// embeddings endpoint. The vectors must match the ones the knowledge base
// index was built with.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/hearth/internal/observability"
)

const defaultDimension = 1536

// Native output sizes of the embedding models we know about.
var nativeDimensions = map[string]int{
	string(openai.EmbeddingModelTextEmbeddingAda002): 1536,
	string(openai.EmbeddingModelTextEmbedding3Small): 1536,
	string(openai.EmbeddingModelTextEmbedding3Large): 3072,
}

// Generator implements domain.EmbeddingGenerator.
type Generator struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewGenerator creates a query embedding generator.
func NewGenerator(config Config) (*Generator, error) {
	if config.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}

	model := config.Model
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Generator{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: config.Dimensions,
	}, nil
}

// Generate embeds one query. A configured dimension count is requested from
// the endpoint and enforced on the answer.
func (g *Generator) Generate(ctx context.Context, text string) ([]float64, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, errors.New("text cannot be empty")
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{query},
		},
		Model: openai.EmbeddingModel(g.model),
	}
	if g.dimensions > 0 {
		params.Dimensions = openai.Int(int64(g.dimensions))
	}

	resp, err := g.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	vector := resp.Data[0].Embedding
	if g.dimensions > 0 && len(vector) != g.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vector), g.dimensions)
	}

	observability.FromContext(ctx).Debug("query embedded",
		observability.Int("dimensions", len(vector)),
		observability.Int64("tokens", resp.Usage.TotalTokens))

	return vector, nil
}

// Dimension returns the vector size this generator produces.
func (g *Generator) Dimension() int {
	if g.dimensions > 0 {
		return g.dimensions
	}
	if d, ok := nativeDimensions[g.model]; ok {
		return d
	}
	return defaultDimension
}
