package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TajiSignBot/command"
	"TajiSignBot/configuration"
	"TajiSignBot/logger"

	"github.com/bwmarrin/discordgo"
)

var (
	commandQueue chan *discordgo.InteractionCreate
	workerPool   chan struct{}
	session      *discordgo.Session
)

const (
	maxQueueSize = 1000
	maxWorkers   = 50

	// A sign-now over several accounts legitimately runs for minutes; the
	// per-account anti-automation delays add up.
	workerTimeout = 5 * time.Minute
)

// StartBot opens the gateway session, registers the slash commands and
// starts the interaction worker pool.
func StartBot() (*discordgo.Session, error) {
	token := configuration.Get().Discord.Token
	if token == "" {
		return nil, errors.New("discord token is not configured")
	}

	var err error
	session, err = discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("error connecting to gateway: %w", err)
	}

	if err := session.UpdateWatchStatus(0, "your daily Tajiduo sign-ins"); err != nil {
		logger.Log.WithError(err).Error("Error setting presence")
	}

	command.RegisterCommands(session)

	commandQueue = make(chan *discordgo.InteractionCreate, maxQueueSize)
	workerPool = make(chan struct{}, maxWorkers)
	for w := 0; w < maxWorkers; w++ {
		go worker()
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		select {
		case commandQueue <- i:
		default:
			logger.Log.Warn("Command queue is full, dropping interaction")
			if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: "The bot is currently experiencing high load. Please try again later.",
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			}); err != nil {
				logger.Log.WithError(err).Error("Error sending overload response")
			}
		}
	})

	return session, nil
}

func worker() {
	for interaction := range commandQueue {
		workerPool <- struct{}{}
		processInteraction(interaction)
		<-workerPool
	}
}

func processInteraction(i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Panic recovered in interaction handler: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			command.HandleCommand(session, i)
		case discordgo.InteractionMessageComponent:
			command.HandleComponent(session, i)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Log.Warn("Interaction processing timed out")
	case <-done:
	}
}
