package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramNotify(t *testing.T) {
	var gotPath string
	var gotPayload struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegram("bot-token", "-100123")
	n.BaseURL = srv.URL

	if err := n.Notify(context.Background(), "sync failed for PROJ-7"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q, want /botbot-token/sendMessage", gotPath)
	}
	if gotPayload.ChatID != "-100123" || gotPayload.Text != "sync failed for PROJ-7" {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestTelegramNotifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegram("bot-token", "nope")
	n.BaseURL = srv.URL

	err := n.Notify(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error = %v, want to include server description", err)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &LogNotifier{Logger: log.New(&buf, "", 0)}

	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "alert: hello") {
		t.Errorf("logged %q, want alert line", got)
	}
}
