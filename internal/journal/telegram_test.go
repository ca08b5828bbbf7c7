package journal

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "12345")
	n.baseURL = srv.URL

	if err := n.Send("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotPayload["chat_id"] != "12345" || gotPayload["text"] != "hello" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
	if gotPayload["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode = %q", gotPayload["parse_mode"])
	}
}

func TestTelegramSendNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("t", "c")
	n.baseURL = srv.URL

	if err := n.Send("hello"); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestFormatTradeAlert(t *testing.T) {
	msg := FormatTradeAlert(sampleEvent("SELL"))

	for _, want := range []string{"Trade Alert - SPY", "SELL SHORT", "$520.00", "2024-02-16", "0.301"} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatStopLossAlert(t *testing.T) {
	msg := FormatStopLossAlert("SPY", "LEAPS percentage stop: 22.0%", 220)

	for _, want := range []string{"STOP LOSS TRIGGERED - SPY", "22.0%", "$220.00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
}
