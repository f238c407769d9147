package sessions

import (
	"context"
	"errors"

	"github.com/vizlab-ai/vizchat/pkg/models"
)

// ErrNotFound is returned when a session id is not known to the store.
var ErrNotFound = errors.New("session not found")

// Store persists chat sessions and their message history.
//
// History is append-only: messages are never reordered or removed once
// written, only trimmed from the front when a session exceeds the retention
// limit. Implementations must be safe for concurrent use.
type Store interface {
	// Create registers a session. A missing ID is generated.
	Create(ctx context.Context, session *models.Session) error

	// Get returns the session with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// AppendMessage adds a message to the end of the session's history.
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error

	// GetHistory returns the most recent messages for a session, oldest
	// first. A limit of 0 returns the full history.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}
