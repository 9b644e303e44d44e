package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"linksaver/internal/domain"
)

const embedColor = 0x5865F2

// Notifier announces newly saved bookmarks
type Notifier interface {
	NotifySaved(ctx context.Context, payload domain.NotifyPayload) error
}

// DiscordNotifier posts save notices to one Discord channel over the REST API
type DiscordNotifier struct {
	logger    *slog.Logger
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier creates a notifier for the bot token and channel
func NewDiscordNotifier(logger *slog.Logger, token, channelID string) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordNotifier{
		logger:    logger,
		session:   session,
		channelID: channelID,
	}, nil
}

// NotifySaved posts an embed describing the saved bookmark
func (n *DiscordNotifier) NotifySaved(ctx context.Context, payload domain.NotifyPayload) error {
	msg, err := n.session.ChannelMessageSendEmbed(n.channelID, savedEmbed(payload), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send Discord notification: %w", err)
	}
	n.logger.Debug("Discord notification sent", "message_id", msg.ID, "bookmark_id", payload.BookmarkID)
	return nil
}

// Close releases the Discord session
func (n *DiscordNotifier) Close() error {
	return n.session.Close()
}

func savedEmbed(p domain.NotifyPayload) *discordgo.MessageEmbed {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	return &discordgo.MessageEmbed{
		Title:       "🔖 " + title,
		URL:         p.URL,
		Description: "New bookmark saved",
		Color:       embedColor,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "linksaver",
		},
	}
}
