package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sportsreport-bot/internal/config"
	"sportsreport-bot/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		WhatsAppToken:   "secret",
		PhoneNumberID:   "1234",
		GraphAPIVersion: "v21.0",
		SendTimeout:     5 * time.Second,
	}
}

func TestSendText(t *testing.T) {
	var got GenericMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v21.0/1234/messages" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization=%q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.out1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(), logging.Discard()).WithBaseURL(srv.URL)
	id, err := c.SendText(context.Background(), "15550001111", "You're all set!")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "wamid.out1" {
		t.Fatalf("id=%q", id)
	}
	if got.To != "15550001111" || got.Type != "text" || got.Text == nil || got.Text.Body != "You're all set!" {
		t.Fatalf("request=%+v", got)
	}
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(testConfig(), logging.Discard()).WithBaseURL(srv.URL)
	_, err := c.SendText(context.Background(), "15550001111", "hi")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err=%v", err)
	}
}

func TestSendTextDryRun(t *testing.T) {
	cfg := testConfig()
	cfg.WhatsAppToken = ""
	c := NewClient(cfg, logging.Discard()).WithBaseURL("http://127.0.0.1:1")
	if !c.DryRun() {
		t.Fatal("expected dry run without a token")
	}
	if _, err := c.SendText(context.Background(), "15550001111", "hi"); err != nil {
		t.Fatalf("dry run should not fail: %v", err)
	}
}
