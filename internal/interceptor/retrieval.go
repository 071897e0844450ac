package interceptor

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/workpool"
)

const (
	noInformationNotice = "\n\nNote: no relevant information was found in the knowledge base; " +
		"the following answer is based on the model's general knowledge."
	searchFailedNotice = "\n\nNote: the knowledge base search failed; " +
		"the following answer is based on the model's general knowledge."
	snippetSeparator = "\n\n---\n\n"
)

var ragTemplate = template.Must(template.New("rag").Parse(`Answer the user's question using the context below. ` +
	`If the context does not contain the answer, say clearly that it cannot be answered from the provided information.

Context:
{{.Context}}

Question: {{.Question}}

Provide an accurate, helpful answer:
`))

// Retrieval grounds the user's prompt in knowledge base snippets when the
// request names a knowledge base.
type Retrieval struct {
	retriever domain.Retriever
	pool      *workpool.Pool
	metrics   *observability.Metrics
}

// NewRetrieval creates the stage.
func NewRetrieval(retriever domain.Retriever, pool *workpool.Pool, metrics *observability.Metrics) *Retrieval {
	return &Retrieval{
		retriever: retriever,
		pool:      pool,
		metrics:   metrics,
	}
}

// Name implements domain.Interceptor.
func (r *Retrieval) Name() string { return "retrieval" }

// Priority implements domain.Interceptor.
func (r *Retrieval) Priority() int { return PriorityRetrieval }

// Before rewrites the last user message. Lookup failures fall back to the
// user prompt plus a notice.
func (r *Retrieval) Before(ctx context.Context, req *domain.ChatRequest) (*domain.ChatRequest, error) {
	if req.KnowledgeBaseID == "" {
		return req, nil
	}
	idx := req.LastUserMessage()
	if idx < 0 {
		return req, nil
	}

	logger := observability.FromContext(ctx)
	query := req.Messages[idx].Text

	snippets, err := workpool.Run(ctx, r.pool, func(ctx context.Context) ([]domain.Snippet, error) {
		return r.retriever.Retrieve(ctx, query, req.KnowledgeBaseID)
	})

	var prompt string
	switch {
	case err != nil:
		logger.Error("knowledge base search failed, answering without it",
			observability.String("knowledge_base_id", req.KnowledgeBaseID),
			observability.Error(err))
		r.metrics.RetrievalFellBack("error")
		prompt = query + searchFailedNotice

	case len(snippets) == 0:
		logger.Info("no relevant documents found",
			observability.String("knowledge_base_id", req.KnowledgeBaseID))
		r.metrics.RetrievalFellBack("empty")
		prompt = query + noInformationNotice

	default:
		rendered, renderErr := renderPrompt(snippets, query)
		if renderErr != nil {
			logger.Error("failed to render retrieval prompt", observability.Error(renderErr))
			r.metrics.RetrievalFellBack("error")
			prompt = query + searchFailedNotice
			break
		}
		logger.Info("built retrieval prompt",
			observability.String("knowledge_base_id", req.KnowledgeBaseID),
			observability.Int("documents", len(snippets)))
		prompt = rendered
	}

	messages := append([]domain.Message(nil), req.Messages...)
	messages[idx].Text = prompt
	return req.WithMessages(messages), nil
}

func renderPrompt(snippets []domain.Snippet, question string) (string, error) {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, fmt.Sprintf("Source: %s\nContent: %s", s.Source, s.Content))
	}

	var b strings.Builder
	err := ragTemplate.Execute(&b, struct {
		Context  string
		Question string
	}{
		Context:  strings.Join(parts, snippetSeparator),
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}
