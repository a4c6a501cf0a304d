package services

import (
	"context"
	"fmt"

	"TajiSignBot/logger"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// DiscordReporter delivers batch results over Discord, pacing sends so a
// large batch never trips the gateway rate limit.
type DiscordReporter struct {
	Session *discordgo.Session
	limiter *rate.Limiter
}

func NewDiscordReporter(session *discordgo.Session) *DiscordReporter {
	return &DiscordReporter{
		Session: session,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (r *DiscordReporter) wait() {
	if err := r.limiter.Wait(context.Background()); err != nil {
		logger.Log.WithError(err).Error("Report rate limiter interrupted")
	}
}

// SendDirect opens (or reuses) the user's DM channel and sends the text.
func (r *DiscordReporter) SendDirect(userID, text string) error {
	r.wait()

	channel, err := r.Session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel for user %s: %w", userID, err)
	}
	if _, err := r.Session.ChannelMessageSend(channel.ID, text); err != nil {
		return fmt.Errorf("failed to send DM to user %s: %w", userID, err)
	}
	return nil
}

// SendGroup sends the text to a guild channel.
func (r *DiscordReporter) SendGroup(channelID, text string) error {
	r.wait()

	if _, err := r.Session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}
