// Package storage holds the persisted message layout shared by the
// HistoryStore adapters.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/davidbz/hearth/internal/domain"
)

// Record is the persisted form of one message.
type Record struct {
	Type      string           `json:"type"`
	Content   string           `json:"content"`
	Reasoning string           `json:"reasoning,omitempty"`
	Metadata  *domain.Metadata `json:"metadata,omitempty"`
}

// EncodeMessage serializes msg as a Record.
func EncodeMessage(msg domain.Message) ([]byte, error) {
	data, err := json.Marshal(Record{
		Type:      string(msg.Role),
		Content:   msg.Text,
		Reasoning: msg.Reasoning,
		Metadata:  msg.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a Record back into a message.
func DecodeMessage(data []byte) (domain.Message, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode message: %w", err)
	}

	role := domain.Role(rec.Type)
	switch role {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
	default:
		return domain.Message{}, fmt.Errorf("unknown message type %q", rec.Type)
	}

	return domain.Message{
		Role:      role,
		Text:      rec.Content,
		Reasoning: rec.Reasoning,
		Metadata:  rec.Metadata,
	}, nil
}
