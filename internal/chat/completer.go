package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/psicapp/riskwatch/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Completer produces the assistant's next turn for a conversation
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates a completer for the endpoint at baseURL
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	logrus.Infof("Chat completions via %s using model %s", config.BaseURL, model)
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}
}

// Complete sends the conversation and returns the first choice's content
func (c *OpenAIClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	logrus.Debugf("Chat completion finished: %s", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// scriptedReplies are used in rotation when no model endpoint is configured
var scriptedReplies = []string{
	"Gracias por compartir cómo te sientes. Estoy aquí para escucharte. ¿Quieres contarme un poco más sobre lo que está pasando?",
	"Lo que describes suena difícil. A veces ayuda hacer una pausa y respirar profundamente unos segundos. ¿Cómo te has sentido estos últimos días?",
	"Es valiente hablar de esto. Recuerda que no tienes que enfrentarlo a solas; hablar con alguien de confianza o con un profesional puede ayudarte.",
	"Te escucho. ¿Hay algo que normalmente te ayude a sentirte un poco mejor cuando tienes días así?",
}

// ScriptedCompleter returns canned supportive replies in a fixed rotation
type ScriptedCompleter struct {
	mu   sync.Mutex
	next int
}

// NewScriptedCompleter creates the offline completer
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{}
}

// Complete ignores the conversation and returns the next canned reply
func (c *ScriptedCompleter) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply := scriptedReplies[c.next%len(scriptedReplies)]
	c.next++
	return reply, nil
}
