package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vizlab-ai/vizchat/pkg/models"
)

// maxMessagesPerSession limits messages stored per session to prevent
// unbounded memory growth. When exceeded, the oldest messages are trimmed.
const maxMessagesPerSession = 1000

// MemoryStore is an in-memory Store. Sessions live for the lifetime of the
// process; there is no eviction or expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]*models.Message
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*models.Session{},
		messages: map[string][]*models.Message{},
	}
}

func (m *MemoryStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := cloneSession(session)
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	// Reflect generated fields back to the caller.
	session.ID = clone.ID
	session.CreatedAt = clone.CreatedAt
	session.UpdatedAt = clone.UpdatedAt
	m.sessions[clone.ID] = clone
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	clone := cloneMessage(msg)
	clone.SessionID = sessionID
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	// Reflect the generated id back so callers can dedup on it.
	msg.ID = clone.ID
	m.messages[sessionID] = append(m.messages[sessionID], clone)
	session.UpdatedAt = time.Now()

	if len(m.messages[sessionID]) > maxMessagesPerSession {
		excess := len(m.messages[sessionID]) - maxMessagesPerSession
		m.messages[sessionID] = m.messages[sessionID][excess:]
	}
	return nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	messages := m.messages[sessionID]
	if len(messages) == 0 {
		return []*models.Message{}, nil
	}
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

// Count returns the number of registered sessions.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func cloneSession(s *models.Session) *models.Session {
	clone := *s
	clone.Metadata = deepCloneMap(s.Metadata)
	return &clone
}

func cloneMessage(msg *models.Message) *models.Message {
	clone := *msg
	clone.Metadata = deepCloneMap(msg.Metadata)
	if msg.ToolCalls != nil {
		clone.ToolCalls = make([]models.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			clone.ToolCalls[i] = tc
			if tc.Input != nil {
				clone.ToolCalls[i].Input = append([]byte(nil), tc.Input...)
			}
		}
	}
	if msg.ToolResults != nil {
		clone.ToolResults = append([]models.ToolResult(nil), msg.ToolResults...)
	}
	return &clone
}

// deepCloneMap creates a deep copy of a map[string]any to prevent shared
// references between callers and the store.
func deepCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = deepCloneValue(v)
	}
	return clone
}

func deepCloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCloneMap(val)
	case []any:
		cloned := make([]any, len(val))
		for i, item := range val {
			cloned[i] = deepCloneValue(item)
		}
		return cloned
	case []string:
		cloned := make([]string, len(val))
		copy(cloned, val)
		return cloned
	default:
		return v
	}
}
