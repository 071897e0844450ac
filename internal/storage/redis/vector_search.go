package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

const (
	redisDialectVersion = 2
	unknownSource       = "unknown source"
)

// SearchConfig names the RediSearch index holding knowledge base chunks.
// Documents carry embedding, content, source and knowledge_base_id fields.
type SearchConfig struct {
	IndexName string `env:"RETRIEVAL_INDEX_NAME" envDefault:"idx:knowledge"`
}

// VectorSearch runs KNN queries against a knowledge base index.
type VectorSearch struct {
	client    *redis.Client
	indexName string
}

// NewVectorSearch creates a vector search adapter. The index is provisioned
// by the ingestion pipeline, not here.
func NewVectorSearch(client *redis.Client, cfg *SearchConfig) *VectorSearch {
	return &VectorSearch{
		client:    client,
		indexName: cfg.IndexName,
	}
}

// floatsToBytes converts float64 slice to FLOAT32 little-endian bytes.
func floatsToBytes(fs []float64) []byte {
	const bytesPerFloat32 = 4
	buf := make([]byte, len(fs)*bytesPerFloat32)

	for i, f := range fs {
		u := math.Float32bits(float32(f))
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], u)
	}

	return buf
}

// escapeTag escapes RediSearch tag punctuation so ids like UUIDs match literally.
func escapeTag(value string) string {
	var b strings.Builder
	for _, r := range value {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func buildQuery(knowledgeBaseID string, limit int) string {
	return fmt.Sprintf("(@knowledge_base_id:{%s})=>[KNN %d @embedding $vec AS score]",
		escapeTag(knowledgeBaseID), limit)
}

// Search returns the nearest chunks of one knowledge base whose similarity
// is at least threshold.
func (v *VectorSearch) Search(
	ctx context.Context,
	knowledgeBaseID string,
	embed []float64,
	threshold float64,
	limit int,
) ([]*domain.SearchResult, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("starting knowledge base search",
		observability.String("index", v.indexName),
		observability.String("knowledge_base_id", knowledgeBaseID),
		observability.Int("embedding_dim", len(embed)),
		observability.Float64("threshold", threshold),
		observability.Int("limit", limit))

	results, err := v.client.FTSearchWithArgs(ctx, v.indexName, buildQuery(knowledgeBaseID, limit),
		&redis.FTSearchOptions{
			Return: []redis.FTSearchReturn{
				{FieldName: "content"},
				{FieldName: "source"},
				{FieldName: "score"},
			},
			SortBy:         []redis.FTSearchSortBy{{FieldName: "score", Asc: true}},
			DialectVersion: redisDialectVersion,
			Params: map[string]any{
				"vec": floatsToBytes(embed),
			},
		},
	).Result()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	logger.Debug("knowledge base search completed",
		observability.Int("total_docs", results.Total),
		observability.Int("docs_returned", len(results.Docs)))

	return parseSearchResults(ctx, results, threshold), nil
}

func parseSearchResults(ctx context.Context, result redis.FTSearchResult, threshold float64) []*domain.SearchResult {
	results := make([]*domain.SearchResult, 0, len(result.Docs))
	for _, doc := range result.Docs {
		if hit := parseSearchResult(ctx, doc, threshold); hit != nil {
			results = append(results, hit)
		}
	}
	return results
}

func parseSearchResult(ctx context.Context, doc redis.Document, threshold float64) *domain.SearchResult {
	scoreStr, ok := doc.Fields["score"]
	if !ok {
		return nil
	}

	distance, err := strconv.ParseFloat(scoreStr, 64)
	if err != nil {
		return nil
	}

	// cosine distance
	similarity := 1.0 - distance
	if similarity < threshold {
		return nil
	}

	content, ok := doc.Fields["content"]
	if !ok || content == "" {
		observability.FromContext(ctx).Warn("content field missing in search result",
			observability.String("key", doc.ID))
		return nil
	}

	source := doc.Fields["source"]
	if source == "" {
		source = unknownSource
	}

	return &domain.SearchResult{
		Key:        doc.ID,
		Similarity: similarity,
		Source:     source,
		Content:    content,
	}
}
