// Package notify implements the engine's ops alerter: a Discord webhook
// notification fired when a cycle fails in a way an operator needs to
// know about immediately (auth failure, every LLM backend exhausted,
// forge unreachable) rather than waiting to be noticed in logs.
//
// Grounded on Strob0t-CodeForge/internal/adapter/discord/notifier.go's
// shape (Name/Send, level-to-color mapping, "empty webhook is not
// configured" guard) adapted from a hand-rolled http.Client POST to
// github.com/bwmarrin/discordgo's WebhookExecute — already a direct
// teacher dependency (internal/channels/discord/discord.go's
// discordgo.New(...) session construction) that this package reuses for
// its session plumbing instead of reimplementing the webhook wire format.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ErrNotConfigured is returned by Send when no webhook URL was set — the
// caller should treat this as "alerting is disabled", not a failure.
var ErrNotConfigured = errors.New("notify: discord webhook not configured")

// Level mirrors the teacher's string-typed notification level, kept as a
// small closed set here since this package has exactly one severity a
// caller ever sends at call time (fatal cycle failures); Info is kept for
// startup/shutdown lifecycle notices.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Alert is one ops notification.
type Alert struct {
	Level   Level
	Title   string
	Message string
	Source  string // e.g. "cycle", "startup"
}

// Notifier sends Alerts to one Discord incoming webhook.
type Notifier struct {
	session      *discordgo.Session
	webhookID    string
	webhookToken string
}

// New builds a Notifier from a full Discord webhook URL
// (https://discord.com/api/webhooks/<id>/<token>). An empty URL yields a
// Notifier whose Send always returns ErrNotConfigured, so callers can
// construct one unconditionally and let Send's result decide whether
// alerting is active.
func New(webhookURL string) (*Notifier, error) {
	if webhookURL == "" {
		return &Notifier{}, nil
	}
	id, token, err := splitWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: session: %w", err)
	}
	return &Notifier{session: session, webhookID: id, webhookToken: token}, nil
}

// Send posts a as a single-embed Discord webhook message.
func (n *Notifier) Send(ctx context.Context, a Alert) error {
	if n.session == nil {
		return ErrNotConfigured
	}

	embed := &discordgo.MessageEmbed{
		Title:       a.Title,
		Description: a.Message,
		Color:       levelColor(a.Level),
	}
	if a.Source != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "source: " + a.Source}
	}

	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	_, err := n.session.WebhookExecute(n.webhookID, n.webhookToken, false, params, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: webhook execute: %w", err)
	}
	return nil
}

func levelColor(level Level) int {
	switch level {
	case LevelError:
		return 0xE74C3C
	case LevelWarning:
		return 0xF39C12
	default:
		return 0x3498DB
	}
}

// splitWebhookURL extracts the id/token pair from a Discord webhook URL's
// trailing two path segments.
func splitWebhookURL(webhookURL string) (id, token string, err error) {
	parts := strings.Split(strings.TrimRight(webhookURL, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("notify: malformed webhook URL %q", webhookURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
