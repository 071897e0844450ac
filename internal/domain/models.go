package domain

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultSessionID is used when a turn arrives without a session id.
const DefaultSessionID = "default"

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Metadata is an insertion-ordered string keyed map.
type Metadata = orderedmap.OrderedMap[string, any]

// NewMetadata returns an empty ordered metadata map.
func NewMetadata() *Metadata {
	return orderedmap.New[string, any]()
}

// Message is one conversation entry.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Reasoning string    `json:"reasoning,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// NewUserMessage builds a user message with the given text.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// NewSystemMessage builds a system message with the given text.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

// HasReasoning reports whether the message carries a reasoning trace.
func (m Message) HasReasoning() bool {
	return m.Reasoning != ""
}

// Fragment is one increment of a streaming response.
// A fragment with a non-nil Error terminates the stream.
type Fragment struct {
	TextDelta      string              `json:"text,omitempty"`
	ReasoningDelta string              `json:"reasoning,omitempty"`
	Metadata       *Metadata           `json:"metadata,omitempty"`
	Generation     *GenerationMetadata `json:"generation,omitempty"`
	Usage          *Usage              `json:"usage,omitempty"`
	ID             string              `json:"id,omitempty"`
	Model          string              `json:"model,omitempty"`
	RateLimit      *RateLimit          `json:"rate_limit,omitempty"`
	Error          error               `json:"-"`
}

// GenerationMetadata describes how a generation ended.
type GenerationMetadata struct {
	FinishReason string `json:"finish_reason,omitempty"`
}

// IsZero reports whether no generation details were set.
func (g GenerationMetadata) IsZero() bool {
	return g.FinishReason == ""
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// Add returns the field-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		Cost:             u.Cost + other.Cost,
	}
}

// RateLimit carries provider quota headers.
type RateLimit struct {
	RequestsLimit     int64 `json:"requests_limit"`
	RequestsRemaining int64 `json:"requests_remaining"`
	TokensLimit       int64 `json:"tokens_limit"`
	TokensRemaining   int64 `json:"tokens_remaining"`
}

// IsEmpty reports whether no quota information is present.
func (r *RateLimit) IsEmpty() bool {
	return r == nil || *r == RateLimit{}
}

// ChatRequest is the request flowing through the interceptor chain.
type ChatRequest struct {
	SessionID       string    `json:"session_id"`
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	ReasoningMode   bool      `json:"reasoning_mode,omitempty"`
	KnowledgeBaseID string    `json:"knowledge_base_id,omitempty"`
	Temperature     float64   `json:"temperature,omitempty"`
	MaxTokens       int       `json:"max_tokens,omitempty"`
}

// WithMessages returns a shallow copy of the request carrying messages.
func (r *ChatRequest) WithMessages(messages []Message) *ChatRequest {
	clone := *r
	clone.Messages = messages
	return &clone
}

// LastUserMessage returns the index of the final user message, or -1.
func (r *ChatRequest) LastUserMessage() int {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// ChatResponse is a complete model answer.
type ChatResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Message    Message            `json:"message"`
	Generation GenerationMetadata `json:"generation"`
	Usage      Usage              `json:"usage"`
	RateLimit  *RateLimit         `json:"rate_limit,omitempty"`
	FinishTime time.Time          `json:"finish_time"`
}

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	Prompt          string `json:"prompt"`
	SessionID       string `json:"chatSessionId"`
	ReasoningMode   bool   `json:"thinkingMode"`
	KnowledgeBaseID string `json:"knowledgeBaseId,omitempty"`
}

// Snippet is one retrieved piece of knowledge base text.
type Snippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
