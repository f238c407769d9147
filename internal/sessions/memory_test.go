package sessions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vizlab-ai/vizchat/pkg/models"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	session := &models.Session{ID: "chat_session_test"}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.Get(ctx, "chat_session_test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "chat_session_test" {
		t.Errorf("id = %q", got.ID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreGeneratesIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	session := &models.Session{}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.ID == "" {
		t.Fatal("session id not reflected back")
	}

	msg := &models.Message{Role: models.RoleUser, Content: "hello"}
	if err := store.AppendMessage(ctx, session.ID, msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if msg.ID == "" {
		t.Error("message id not reflected back")
	}
}

func TestMemoryStoreAppendUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.AppendMessage(context.Background(), "missing", &models.Message{Role: models.RoleUser})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreHistoryIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := &models.Session{}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	msg := &models.Message{
		Role:     models.RoleUser,
		Content:  "original",
		Metadata: map[string]any{"tags": []string{"a"}},
	}
	if err := store.AppendMessage(ctx, session.ID, msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	msg.Content = "mutated"
	msg.Metadata["tags"].([]string)[0] = "z"

	history, err := store.GetHistory(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if history[0].Content != "original" {
		t.Errorf("content = %q, stored message was mutated", history[0].Content)
	}
	if history[0].Metadata["tags"].([]string)[0] != "a" {
		t.Error("metadata was shared with the caller")
	}

	// Mutating a returned message must not leak either.
	history[0].Content = "mutated again"
	again, _ := store.GetHistory(ctx, session.ID, 0)
	if again[0].Content != "original" {
		t.Error("returned history shares storage with the store")
	}
}

func TestMemoryStoreHistoryLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := &models.Session{}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 5; i++ {
		msg := &models.Message{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)}
		if err := store.AppendMessage(ctx, session.ID, msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	history, err := store.GetHistory(ctx, session.ID, 2)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2", len(history))
	}
	if history[0].Content != "m3" || history[1].Content != "m4" {
		t.Errorf("limited history = %q, %q", history[0].Content, history[1].Content)
	}
}
