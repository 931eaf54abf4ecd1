package advisor

import (
	"sync"

	"github.com/mamadbah2/rabbitry/pkg/clients/anthropic"
)

// SessionManager keeps a bounded conversation history per user and farm.
type SessionManager struct {
	sessions map[string][]anthropic.Message
	maxTurns int
	mu       sync.RWMutex
}

// NewSessionManager creates a session manager keeping at most maxTurns question/answer pairs.
func NewSessionManager(maxTurns int) *SessionManager {
	if maxTurns < 1 {
		maxTurns = 1
	}
	return &SessionManager{
		sessions: make(map[string][]anthropic.Message),
		maxTurns: maxTurns,
	}
}

// History returns a copy of the stored conversation.
func (sm *SessionManager) History(key string) []anthropic.Message {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]anthropic.Message(nil), sm.sessions[key]...)
}

// Append records one exchange, dropping the oldest ones beyond the limit.
func (sm *SessionManager) Append(key, question, answer string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	history := append(sm.sessions[key],
		anthropic.Message{Role: anthropic.RoleUser, Content: question},
		anthropic.Message{Role: anthropic.RoleAssistant, Content: answer},
	)
	if limit := sm.maxTurns * 2; len(history) > limit {
		history = append([]anthropic.Message(nil), history[len(history)-limit:]...)
	}
	sm.sessions[key] = history
}

// Clear removes a conversation.
func (sm *SessionManager) Clear(key string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, key)
}
