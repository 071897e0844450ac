package domain

import "context"

// ChatModel is the model-invocation boundary.
type ChatModel interface {
	// Call sends a request and returns the full response.
	Call(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream sends a request and returns its fragments in emission order.
	// The channel is closed when the stream ends; the producer must stop
	// once ctx is done.
	Stream(ctx context.Context, req *ChatRequest) (<-chan Fragment, error)

	// Name returns the provider identifier.
	Name() string

	// IsModelSupported checks if the provider serves the given model.
	IsModelSupported(ctx context.Context, model string) bool

	// SupportedModels lists the models the provider serves.
	SupportedModels(ctx context.Context) []string
}

// ProviderRegistry manages available chat models.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider ChatModel) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (ChatModel, error)

	// GetByModel retrieves the provider serving model.
	GetByModel(ctx context.Context, model string) (ChatModel, error)

	// List returns all registered provider names.
	List(ctx context.Context) ([]string, error)
}

// Router determines which model serves a turn.
type Router interface {
	// Route selects a model name based on request criteria.
	Route(ctx context.Context, req *RouteRequest) (string, error)
}

// RouteRequest contains criteria for model selection.
type RouteRequest struct {
	ReasoningMode bool
}

// HistoryStore persists conversation windows.
type HistoryStore interface {
	// ListSessions returns every indexed session id.
	ListSessions(ctx context.Context) ([]string, error)

	// LoadHistory returns the session's messages, oldest first.
	LoadHistory(ctx context.Context, sessionID string) ([]Message, error)

	// AppendHistory appends messages, indexes the session, trims the window
	// and refreshes the retention TTL.
	AppendHistory(ctx context.Context, sessionID string, messages []Message) error

	// DeleteHistory removes the session's messages and index entry.
	DeleteHistory(ctx context.Context, sessionID string) error

	// PruneExpired drops index entries whose data has expired and returns
	// how many were removed.
	PruneExpired(ctx context.Context) (int, error)
}

// Retriever looks up knowledge base snippets for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, knowledgeBaseID string) ([]Snippet, error)
}

// EmbeddingGenerator creates vector embeddings from text.
type EmbeddingGenerator interface {
	// Generate creates a vector embedding from text.
	Generate(ctx context.Context, text string) ([]float64, error)
}

// SimilaritySearch performs vector similarity search within one knowledge base.
type SimilaritySearch interface {
	Search(
		ctx context.Context,
		knowledgeBaseID string,
		embedding []float64,
		threshold float64,
		limit int,
	) ([]*SearchResult, error)
}

// SearchResult is one vector search hit.
type SearchResult struct {
	Key        string
	Similarity float64
	Source     string
	Content    string
}
