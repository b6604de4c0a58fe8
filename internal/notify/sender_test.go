package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSender_Send(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bot123:abc/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("123:abc", "-100200")
	s.apiBase = srv.URL

	if err := s.Send(context.Background(), "Opportunity: pair", "profit: 52.6 bps\ncost: $0.9500"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "-100200" || got.ParseMode != "Markdown" || !got.DisableWebPagePreview {
		t.Errorf("message = %+v", got)
	}
	// Title bold, body in a monospace block so the summary columns align.
	if !strings.HasPrefix(got.Text, "*Opportunity: pair*\n```\n") || !strings.HasSuffix(got.Text, "\n```") {
		t.Errorf("text = %q", got.Text)
	}
	if !strings.Contains(got.Text, "profit: 52.6 bps") {
		t.Errorf("body lost: %q", got.Text)
	}
}

func TestTelegramSender_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("123:abc", "-100200")
	s.apiBase = srv.URL
	if err := s.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}

func TestDiscordSender_Send(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	if err := s.Send(context.Background(), "Execution completed: e1", "legs filled: 2/2"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Username != "polyarb" || len(got.Embeds) != 1 {
		t.Fatalf("payload = %+v", got)
	}
	if got.Embeds[0].Title != "Execution completed: e1" || got.Embeds[0].Description != "legs filled: 2/2" {
		t.Errorf("embed = %+v", got.Embeds[0])
	}
}

func TestDiscordSender_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}
