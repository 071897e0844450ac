package domain

import "errors"

var (
	// ErrEmptyPrompt indicates a turn without prompt text.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrRetrievalUnavailable indicates no knowledge base backend is configured.
	ErrRetrievalUnavailable = errors.New("knowledge base retrieval is not configured")

	// ErrModelNotSupported indicates a provider was asked for a model it does not serve.
	ErrModelNotSupported = errors.New("model not supported")
)
