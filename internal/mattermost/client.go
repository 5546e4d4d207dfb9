// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/osu-guessr/guessr-stats/internal/config"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

const botUsername = "osu!guessr Stats"

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// DigestEntry is one line of a leaderboard digest.
type DigestEntry struct {
	Rank     int
	Username string
	Value    int64
}

// DigestSection is the top of one (mode, variant) leaderboard.
type DigestSection struct {
	GameMode models.GameMode
	Variant  models.Variant
	Entries  []DigestEntry
}

// SendLeaderboardDigest posts one attachment per non-empty section.
// Nothing is sent when every section is empty.
func (c *Client) SendLeaderboardDigest(ctx context.Context, sections []DigestSection) error {
	attachments := make([]Attachment, 0, len(sections))
	for _, section := range sections {
		if len(section.Entries) == 0 {
			continue
		}
		attachments = append(attachments, digestAttachment(section))
	}

	if len(attachments) == 0 {
		c.log.Debug().Msg("Every leaderboard is empty, skipping digest")
		return nil
	}

	return c.SendMessage(ctx, &Message{
		Username:    botUsername,
		Text:        "### 🏆 Daily Leaderboard Digest",
		Attachments: attachments,
	})
}

func digestAttachment(section DigestSection) Attachment {
	metric := "points"
	color := "#ff66aa"
	if section.Variant == models.VariantDeath {
		metric = "streak"
		color = "#444444"
	}

	var text strings.Builder
	for _, entry := range section.Entries {
		fmt.Fprintf(&text, "%d. **%s** (%d %s)\n", entry.Rank, entry.Username, entry.Value, metric)
	}

	title := fmt.Sprintf("%s / %s", titleCase(string(section.GameMode)), titleCase(string(section.Variant)))
	return Attachment{
		Fallback: title,
		Color:    color,
		Title:    title,
		Text:     text.String(),
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
