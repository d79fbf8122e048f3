package hint

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/malangee/ai-engine/internal/bridge"
)

// startChatServer returns a test server that answers every chat completion
// request with the given assistant message content. The request body is
// captured for assertions.
func startChatServer(t *testing.T, content string) (*httptest.Server, *map[string]any) {
	t.Helper()
	captured := &map[string]any{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*captured = body

		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testMessages() []bridge.Message {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return []bridge.Message{
		{Role: bridge.RoleAssistant, Content: "Welcome! What can I get you?", Timestamp: now},
		{Role: bridge.RoleUser, Content: "Um... coffee?", Timestamp: now.Add(5 * time.Second)},
	}
}

func TestGenerate_ReturnsHints(t *testing.T) {
	srv, _ := startChatServer(t, `["Could I get a latte, please?", "I'd like a medium coffee to go.", "What would you recommend for someone who likes a strong roast?"]`)

	g, err := New("test-key", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hints, err := g.Generate(context.Background(), testMessages(), bridge.Scenario{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(hints) != 3 {
		t.Fatalf("len(hints) = %d, want 3", len(hints))
	}
	if hints[0] != "Could I get a latte, please?" {
		t.Errorf("hints[0] = %q", hints[0])
	}
}

func TestGenerate_EmptyTranscript(t *testing.T) {
	// No server: an empty transcript must not trigger an API call.
	g, err := New("test-key", "gpt-4o-mini", WithBaseURL("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hints, err := g.Generate(context.Background(), nil, bridge.Scenario{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if hints != nil {
		t.Errorf("hints = %v, want nil", hints)
	}
}

func TestGenerate_IncludesScenarioAndTranscript(t *testing.T) {
	srv, captured := startChatServer(t, `["a", "b", "c"]`)

	g, err := New("test-key", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scenario := bridge.Scenario{
		Title:   "Ordering coffee",
		Place:   "A busy cafe",
		Partner: "Barista",
		Goal:    "Order a drink and a snack",
	}
	if _, err := g.Generate(context.Background(), testMessages(), scenario); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	msgs, ok := (*captured)["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("request messages = %v, want 2 entries", (*captured)["messages"])
	}

	system := msgs[0].(map[string]any)["content"].(string)
	for _, want := range []string{"Topic: Ordering coffee", "Place: A busy cafe", "Speaking with: Barista", "Goal: Order a drink and a snack"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	user := msgs[1].(map[string]any)["content"].(string)
	if !strings.Contains(user, "Learner: Um... coffee?") {
		t.Errorf("user prompt missing learner line: %q", user)
	}
	if !strings.Contains(user, "Tutor: Welcome! What can I get you?") {
		t.Errorf("user prompt missing tutor line: %q", user)
	}
}

func TestGenerate_TruncatesToThreeHints(t *testing.T) {
	srv, _ := startChatServer(t, `["one", "two", "three", "four", "five"]`)

	g, err := New("test-key", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hints, err := g.Generate(context.Background(), testMessages(), bridge.Scenario{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(hints) != 3 {
		t.Errorf("len(hints) = %d, want 3", len(hints))
	}
}

func TestGenerate_FencedOutput(t *testing.T) {
	srv, _ := startChatServer(t, "```json\n[\"a\", \"b\", \"c\"]\n```")

	g, err := New("test-key", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hints, err := g.Generate(context.Background(), testMessages(), bridge.Scenario{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(hints) != 3 {
		t.Errorf("len(hints) = %d, want 3", len(hints))
	}
}

func TestGenerate_MalformedOutput(t *testing.T) {
	srv, _ := startChatServer(t, "Here are some suggestions: try asking about the menu.")

	g, err := New("test-key", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := g.Generate(context.Background(), testMessages(), bridge.Scenario{}); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestGenerate_BreakerOpenFailsFast(t *testing.T) {
	srv, captured := startChatServer(t, `["a", "b", "c"]`)

	g, err := New("test-key", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Trip the breaker with failures recorded below the HTTP layer.
	for range 3 {
		_ = g.breaker.Do(func() error { return errors.New("down") })
	}

	_, err = g.Generate(context.Background(), testMessages(), bridge.Scenario{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Generate error = %v, want ErrUnavailable", err)
	}
	if len(*captured) != 0 {
		t.Error("request reached the server while the breaker was open")
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty api key, got nil")
	}
}
