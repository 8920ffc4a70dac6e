package notify

import (
	"context"
	"fmt"
	"net/http"
)

// Embed colours per event type.
var discordColors = map[string]int{
	EventSignalOpened:   0x2ecc71,
	EventSignalClosed:   0x3498db,
	EventSignalFlipped:  0x9b59b6,
	EventOracleFallback: 0xf39c12,
	EventError:          0xe74c3c,
}

// DiscordSender delivers notifications as embeds via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: newHTTPClient()}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color,omitempty"`
}

// Send posts one embed to the webhook. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, event, title, message string) error {
	payload := map[string][]discordEmbed{
		"embeds": {{Title: title, Description: message, Color: discordColors[event]}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
