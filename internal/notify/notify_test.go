package notify

import (
	"context"
	"testing"
)

func TestNewWithEmptyURLIsNotConfigured(t *testing.T) {
	n, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Send(context.Background(), Alert{Title: "test"}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSplitWebhookURL(t *testing.T) {
	id, token, err := splitWebhookURL("https://discord.com/api/webhooks/123456789/abcDEF-token_value")
	if err != nil {
		t.Fatalf("splitWebhookURL: %v", err)
	}
	if id != "123456789" {
		t.Fatalf("id = %q, want 123456789", id)
	}
	if token != "abcDEF-token_value" {
		t.Fatalf("token = %q, want abcDEF-token_value", token)
	}
}

func TestSplitWebhookURLRejectsMalformed(t *testing.T) {
	if _, _, err := splitWebhookURL("not-a-url"); err == nil {
		t.Fatal("expected an error for a malformed webhook URL")
	}
}

func TestNewParsesWellFormedWebhookURL(t *testing.T) {
	n, err := New("https://discord.com/api/webhooks/42/tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.webhookID != "42" || n.webhookToken != "tok" {
		t.Fatalf("unexpected notifier fields: %+v", n)
	}
}

func TestLevelColorMapping(t *testing.T) {
	if levelColor(LevelError) == levelColor(LevelWarning) {
		t.Fatal("expected error and warning to map to distinct colors")
	}
	if levelColor(LevelInfo) == levelColor(LevelError) {
		t.Fatal("expected info and error to map to distinct colors")
	}
}
