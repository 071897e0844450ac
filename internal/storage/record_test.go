package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/storage"
)

func TestDecodeMessage(t *testing.T) {
	t.Run("should restore an assistant message with reasoning and ordered metadata", func(t *testing.T) {
		meta := domain.NewMetadata()
		meta.Set("model", "deepseek-reasoner")
		meta.Set("finish_reason", "stop")
		msg := domain.Message{Role: domain.RoleAssistant, Text: "42", Reasoning: "thought", Metadata: meta}

		data, err := storage.EncodeMessage(msg)
		require.NoError(t, err)
		require.JSONEq(t,
			`{"type":"assistant","content":"42","reasoning":"thought","metadata":{"model":"deepseek-reasoner","finish_reason":"stop"}}`,
			string(data))

		decoded, err := storage.DecodeMessage(data)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAssistant, decoded.Role)
		require.Equal(t, "thought", decoded.Reasoning)

		var keys []string
		for pair := decoded.Metadata.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		require.Equal(t, []string{"model", "finish_reason"}, keys)
	})

	t.Run("should omit empty reasoning and metadata", func(t *testing.T) {
		data, err := storage.EncodeMessage(domain.NewUserMessage("hi"))
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"user","content":"hi"}`, string(data))
	})

	t.Run("should reject unknown record types", func(t *testing.T) {
		_, err := storage.DecodeMessage([]byte(`{"type":"ToolMessage","content":"x"}`))
		require.Error(t, err)
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		_, err := storage.DecodeMessage([]byte(`{`))
		require.Error(t, err)
	})
}
