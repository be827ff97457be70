package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/psicapp/riskwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Reset(t *testing.T) {
	session := NewSession("u1")
	session.append(roleUser, "hola")
	session.append(roleAssistant, "hola, ¿cómo estás?")
	require.Len(t, session.History(), 3)

	session.Reset()

	history := session.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.ChatMessage{Role: roleSystem, Content: SystemPrompt}, history[0])
}

func TestSessions_GetAndReset(t *testing.T) {
	sessions := NewSessions()

	first := sessions.Get("u1")
	assert.Same(t, first, sessions.Get("u1"))
	assert.NotSame(t, first, sessions.Get("u2"))
	assert.Equal(t, "u1", first.UserID)

	first.append(roleUser, "hola")
	sessions.Reset("u1")
	assert.Len(t, first.History(), 1)

	sessions.Reset("unknown")
}

func TestScriptedCompleter_Rotates(t *testing.T) {
	completer := NewScriptedCompleter()

	seen := make([]string, 0, len(scriptedReplies)+1)
	for i := 0; i <= len(scriptedReplies); i++ {
		reply, err := completer.Complete(context.Background(), nil)
		require.NoError(t, err)
		seen = append(seen, reply)
	}

	assert.Equal(t, scriptedReplies[0], seen[0])
	assert.Equal(t, scriptedReplies[1], seen[1])
	assert.Equal(t, seen[0], seen[len(scriptedReplies)])
}

func TestOpenAIClient_Complete(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Estoy aquí."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL, "llama-test", 0.7, 500)
	reply, err := client.Complete(context.Background(), []models.ChatMessage{
		{Role: roleSystem, Content: SystemPrompt},
		{Role: roleUser, Content: "hola"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Estoy aquí.", reply)
	assert.Equal(t, "llama-test", received["model"])
	assert.InDelta(t, 0.7, received["temperature"], 0.001)
	assert.Equal(t, float64(500), received["max_tokens"])
	assert.Len(t, received["messages"], 2)
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL, "llama-test", 0.7, 500)
	_, err := client.Complete(context.Background(), []models.ChatMessage{{Role: roleUser, Content: "hola"}})
	assert.ErrorContains(t, err, "chat completion")
}
