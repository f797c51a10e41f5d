package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/config"
	"github.com/tavern-guild/tavern/pkg/logger"
)

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]Message) {
	t.Helper()

	var received []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			received = append(received, msg)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestAnnounceQuestCompleted(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Channel: "guild-hall", Enabled: true}, logger.Nop())

	err := c.AnnounceQuestCompleted(context.Background(), QuestCompletion{
		QuestTitle:       "Slay the wyrm",
		OrganizationName: "Ravenhold",
		AdventurerName:   "aria",
		Difficulty:       "EPIC",
		XPAwarded:        700,
		Rank:             "C",
		RankChanged:      true,
		ScrollID:         "SOD-1-ABCDEF",
	})
	require.NoError(t, err)

	require.Len(t, *received, 1)
	msg := (*received)[0]
	assert.Equal(t, "guild-hall", msg.Channel)
	assert.Equal(t, botUsername, msg.Username)
	assert.Contains(t, msg.Text, "Slay the wyrm")
	assert.Contains(t, msg.Text, "rank **C**")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "#8e44ad", msg.Attachments[0].Color)
}

func TestAnnounceOrganizationFlagged(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Enabled: true}, logger.Nop())

	require.NoError(t, c.AnnounceOrganizationFlagged(context.Background(), "Shady Co", "unpaid rewards"))

	require.Len(t, *received, 1)
	assert.Contains(t, (*received)[0].Text, "Shady Co")
	assert.Contains(t, (*received)[0].Text, "unpaid rewards")
}

func TestSendMessage_Disabled(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Enabled: false}, logger.Nop())

	require.NoError(t, c.SendMessage(context.Background(), &Message{Text: "hello"}))
	assert.Empty(t, *received)
}

func TestSendMessage_ErrorStatus(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Enabled: true}, logger.Nop())

	err := c.SendMessage(context.Background(), &Message{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
