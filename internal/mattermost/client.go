// Package mattermost provides webhook client for posting guild announcements to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tavern-guild/tavern/internal/config"
	"github.com/tavern-guild/tavern/pkg/logger"
)

const botUsername = "Tavern Herald"

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
	Pretext  string  `json:"pretext,omitempty"`
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
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

// QuestCompletion is announced when an NPC completes a quest.
type QuestCompletion struct {
	QuestTitle       string
	OrganizationName string
	AdventurerName   string
	Difficulty       string
	XPAwarded        int64
	Rank             string
	RankChanged      bool
	ScrollID         string
}

// AnnounceQuestCompleted posts a quest completion to the guild channel.
func (c *Client) AnnounceQuestCompleted(ctx context.Context, qc QuestCompletion) error {
	if !c.enabled {
		return nil
	}

	text := fmt.Sprintf("⚔️ **%s** completed **%s** for %s", qc.AdventurerName, qc.QuestTitle, qc.OrganizationName)
	if qc.RankChanged {
		text += fmt.Sprintf("\n🎖️ %s has risen to rank **%s**!", qc.AdventurerName, qc.Rank)
	}

	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Text:     text,
		Attachments: []Attachment{{
			Fallback: text,
			Color:    difficultyColor(qc.Difficulty),
			Fields: []Field{
				{Short: true, Title: "Difficulty", Value: qc.Difficulty},
				{Short: true, Title: "XP", Value: fmt.Sprintf("+%d", qc.XPAwarded)},
				{Short: true, Title: "Rank", Value: qc.Rank},
				{Short: true, Title: "Scroll", Value: qc.ScrollID},
			},
		}},
	})
}

// AnnounceOrganizationFlagged posts a notice that an organization was flagged for review.
func (c *Client) AnnounceOrganizationFlagged(ctx context.Context, organizationName, reason string) error {
	if !c.enabled {
		return nil
	}

	text := fmt.Sprintf("🚩 **%s** has been flagged for review by the guild.", organizationName)
	if reason != "" {
		text += "\n> " + reason
	}

	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Text:     text,
	})
}

func difficultyColor(difficulty string) string {
	switch difficulty {
	case "EPIC":
		return "#8e44ad"
	case "HARD":
		return "#c0392b"
	case "MEDIUM":
		return "#e67e22"
	default:
		return "#27ae60"
	}
}
