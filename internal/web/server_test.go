package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/internal/chat"
	"github.com/vizlab-ai/vizchat/internal/sessions"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// scriptedStreamer replays a fixed snapshot sequence for any turn.
type scriptedStreamer struct {
	snaps []agent.Snapshot
}

func (f *scriptedStreamer) Stream(ctx context.Context, sessionID, message string) (<-chan agent.Snapshot, error) {
	ch := make(chan agent.Snapshot, len(f.snaps))
	for _, snap := range f.snaps {
		ch <- snap
	}
	close(ch)
	return ch, nil
}

func answeringStreamer(answer string) *scriptedStreamer {
	base := []*models.Message{{ID: "u1", Role: models.RoleUser, Content: "hi"}}
	return &scriptedStreamer{snaps: []agent.Snapshot{
		{Messages: base},
		{Messages: append(base, &models.Message{ID: "a1", Role: models.RoleAssistant, Content: answer})},
	}}
}

func newTestServer(t *testing.T, streamer chat.Streamer) (*Server, *sessions.MemoryStore) {
	t.Helper()
	store := sessions.NewMemoryStore()
	var coordinator *chat.Coordinator
	if streamer != nil {
		coordinator = chat.NewCoordinator(streamer, sessions.NewRepairer(store, nil, nil), nil, nil)
	}
	return NewServer(coordinator, store, "", nil, nil), store
}

func createSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /session = %d", rec.Code)
	}
	var body struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	return body.ThreadID
}

func TestSessionEndpoint(t *testing.T) {
	server, store := newTestServer(t, answeringStreamer("ok"))
	handler := server.Router()

	threadID := createSession(t, handler)
	if !strings.HasPrefix(threadID, "chat_session_") {
		t.Errorf("thread_id = %q, want chat_session_ prefix", threadID)
	}
	if _, err := store.Get(context.Background(), threadID); err != nil {
		t.Errorf("session not registered: %v", err)
	}

	second := createSession(t, handler)
	if second == threadID {
		t.Error("two sessions share a thread_id")
	}
}

func TestChatEndpoint(t *testing.T) {
	server, _ := newTestServer(t, answeringStreamer("the total is $10k"))
	handler := server.Router()
	threadID := createSession(t, handler)

	body := `{"message":"total sales?","thread_id":"` + threadID + `"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /chat = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "the total is $10k" {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestChatUnknownThread(t *testing.T) {
	server, _ := newTestServer(t, answeringStreamer("ok"))
	handler := server.Router()

	body := `{"message":"hi","thread_id":"chat_session_bogus"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown thread_id") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatMissingFields(t *testing.T) {
	server, _ := newTestServer(t, answeringStreamer("ok"))
	handler := server.Router()

	for _, body := range []string{`{}`, `{"message":"hi"}`, `{"thread_id":"x"}`, `not json`} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestChatAgentNotInitialized(t *testing.T) {
	server, _ := newTestServer(t, nil)
	handler := server.Router()
	threadID := createSession(t, handler)

	body := `{"message":"hi","thread_id":"` + threadID + `"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Agent not initialized") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	base := []*models.Message{{ID: "u1", Role: models.RoleUser, Content: "hi"}}
	streamer := &scriptedStreamer{snaps: []agent.Snapshot{
		{Messages: base},
		{Messages: append(base, &models.Message{ID: "a1", Role: models.RoleAssistant, Content: "thinking out loud"})},
		{Messages: append(base,
			&models.Message{ID: "a1", Role: models.RoleAssistant, Content: "thinking out loud"},
			&models.Message{ID: "a2", Role: models.RoleAssistant, Content: "final answer"})},
	}}
	server, _ := newTestServer(t, streamer)
	handler := server.Router()
	threadID := createSession(t, handler)

	body := `{"message":"hi","thread_id":"` + threadID + `"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	var events []models.StreamEvent
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event models.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		events = append(events, event)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Type != models.EventStep || events[1].Type != models.EventStep {
		t.Errorf("event types = %q, %q", events[0].Type, events[1].Type)
	}
	last := events[len(events)-1]
	if last.Type != models.EventFinal || !last.IsFinal || last.Content != "final answer" {
		t.Errorf("final event = %+v", last)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, answeringStreamer("ok"))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rec.Code)
	}
}
