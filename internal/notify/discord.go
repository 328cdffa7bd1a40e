package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Embed colours.
const (
	discordGreen = 0x2ecc71
	discordRed   = 0xe74c3c
)

// DiscordSender posts embeds to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for a webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
		now:        time.Now,
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send delivers one embed. Failure titles are coloured red.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	color := discordGreen
	if strings.Contains(strings.ToLower(title), "fail") {
		color = discordRed
	}
	err := postJSON(ctx, d.client, d.webhookURL, discordPayload{
		Username: "triarb",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       color,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string { return "discord" }
