package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/davidbz/hearth/internal/observability"
)

// Retrieval defaults.
const (
	DefaultRetrievalTopK      = 5
	DefaultRetrievalThreshold = 0.7
)

// KnowledgeRetriever finds knowledge base snippets by embedding the query and
// running a similarity search scoped to one knowledge base.
type KnowledgeRetriever struct {
	embeddingGen     EmbeddingGenerator
	similaritySearch SimilaritySearch
	threshold        float64
	topK             int
}

// NewKnowledgeRetriever creates a retriever.
func NewKnowledgeRetriever(
	embeddingGen EmbeddingGenerator,
	similaritySearch SimilaritySearch,
	threshold float64,
	topK int,
) *KnowledgeRetriever {
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}
	return &KnowledgeRetriever{
		embeddingGen:     embeddingGen,
		similaritySearch: similaritySearch,
		threshold:        threshold,
		topK:             topK,
	}
}

// Retrieve returns up to topK snippets ordered by similarity.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query, knowledgeBaseID string) ([]Snippet, error) {
	logger := observability.FromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query cannot be empty")
	}
	if knowledgeBaseID == "" {
		return nil, errors.New("knowledge base id cannot be empty")
	}

	embedding, err := r.embeddingGen.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	logger.Debug("query embedding generated",
		observability.Int("embedding_dimension", len(embedding)))

	results, err := r.similaritySearch.Search(ctx, knowledgeBaseID, embedding, r.threshold, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	snippets := make([]Snippet, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		snippets = append(snippets, Snippet{
			Source:  res.Source,
			Content: res.Content,
			Score:   res.Similarity,
		})
	}

	logger.Info("knowledge base searched",
		observability.String("knowledge_base_id", knowledgeBaseID),
		observability.Int("snippets", len(snippets)),
		observability.Float64("threshold", r.threshold))

	return snippets, nil
}

// UnavailableRetriever fails every lookup. It stands in when no embedding
// backend is configured so knowledge base turns fall back to the model.
type UnavailableRetriever struct{}

// Retrieve always returns ErrRetrievalUnavailable.
func (UnavailableRetriever) Retrieve(context.Context, string, string) ([]Snippet, error) {
	return nil, ErrRetrievalUnavailable
}
