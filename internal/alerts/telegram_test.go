package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"okx-spread-bot/internal/config"

	"go.uber.org/zap"
)

func TestTelegramSend(t *testing.T) {
	var path string
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := newTelegram(config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}, zap.NewNop(), server.URL, server.Client())
	if err := client.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path = %q", path)
	}
	if body["chat_id"] != "42" || body["text"] != "hello" {
		t.Fatalf("body = %v", body)
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer server.Close()

	client := newTelegram(config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}, zap.NewNop(), server.URL, server.Client())
	err := client.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("error = %v, want chat not found", err)
	}
}

func TestTelegramDisabledSwallowsSends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("disabled client should not call the API")
	}))
	defer server.Close()

	client := newTelegram(config.TelegramConfig{Enabled: false}, zap.NewNop(), server.URL, server.Client())
	if err := client.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTelegramRequiresCredentials(t *testing.T) {
	client := newTelegram(config.TelegramConfig{Enabled: true}, zap.NewNop(), "http://invalid", nil)
	if err := client.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for missing token and chat id")
	}
}
