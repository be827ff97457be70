package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/psicapp/riskwatch/internal/models"
)

// SystemPrompt frames every conversation
const SystemPrompt = "Eres un asistente psicológico empático y profesional. Tu objetivo es proporcionar apoyo emocional, " +
	"escuchar activamente y ofrecer orientación basada en principios psicológicos establecidos. No diagnosticas ni " +
	"reemplazas a un profesional de la salud mental, pero puedes ofrecer técnicas de afrontamiento y recursos útiles. " +
	"Responde en español de manera cálida y comprensiva."

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Session is one user's conversation with the assistant
type Session struct {
	ID     string
	UserID string

	mu    sync.Mutex
	turns []models.ChatMessage // user and assistant turns, oldest first
}

// NewSession starts an empty conversation for userID
func NewSession(userID string) *Session {
	return &Session{ID: uuid.NewString(), UserID: userID}
}

// Reset drops every turn, leaving only the system prompt
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// History returns the system prompt followed by all turns
func (s *Session) History() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, 0, len(s.turns)+1)
	out = append(out, models.ChatMessage{Role: roleSystem, Content: SystemPrompt})
	return append(out, s.turns...)
}

func (s *Session) append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, models.ChatMessage{Role: role, Content: content})
}

// window returns the system prompt plus the last limit turns
func (s *Session) window(limit int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.turns
	if limit > 0 && len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	out := make([]models.ChatMessage, 0, len(recent)+1)
	out = append(out, models.ChatMessage{Role: roleSystem, Content: SystemPrompt})
	return append(out, recent...)
}

// Sessions keeps one live session per user
type Sessions struct {
	mu     sync.Mutex
	byUser map[string]*Session
}

// NewSessions creates an empty registry
func NewSessions() *Sessions {
	return &Sessions{byUser: make(map[string]*Session)}
}

// Get returns the user's session, starting one if needed
func (r *Sessions) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.byUser[userID]
	if !ok {
		session = NewSession(userID)
		r.byUser[userID] = session
	}
	return session
}

// Reset clears the user's conversation. Unknown users are a no-op.
func (r *Sessions) Reset(userID string) {
	r.mu.Lock()
	session, ok := r.byUser[userID]
	r.mu.Unlock()

	if ok {
		session.Reset()
	}
}
