package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"TajiSignBot/bot"
	"TajiSignBot/command"
	"TajiSignBot/configuration"
	"TajiSignBot/database"
	"TajiSignBot/logger"
	"TajiSignBot/services"
	"TajiSignBot/store"
	"TajiSignBot/taygedo"
	"TajiSignBot/webserver"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
)

var discord *discordgo.Session

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Recovered from panic: %v\n%s", r, debug.Stack())
		}
	}()

	logger.Log.Info("Bot starting...")
	if err := run(); err != nil {
		logger.Log.WithError(err).Error("Bot encountered an error and is shutting down")
		os.Exit(1)
	}
}

func run() error {
	if err := loadEnvironmentVariables(); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := configuration.Load(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := database.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Log.Info("Database connection established successfully")

	cfg := configuration.Get()
	st := store.New(database.GetDB())
	client := taygedo.NewClient(cfg.Taygedo.ProxyURL, cfg.Taygedo.Timeout)

	signer := &services.Signer{API: client, Bindings: st, Ledger: st}
	flow := services.NewLoginFlow(client, st, signer)
	batch := &services.Batch{Signer: signer, Bindings: st, Ledger: st, Subs: st}

	command.WireDependencies(flow, signer, batch, st)

	var err error
	discord, err = bot.StartBot()
	if err != nil {
		return fmt.Errorf("failed to start Discord bot: %w", err)
	}
	logger.Log.Info("Discord bot started successfully")

	batch.Reporter = services.NewDiscordReporter(discord)

	scheduler, err := services.StartScheduler(batch)
	if err != nil {
		return fmt.Errorf("failed to start the sign-in scheduler: %w", err)
	}

	go func() {
		if err := webserver.Start(flow); err != nil {
			logger.Log.WithError(err).Error("Login web server stopped")
		}
	}()

	logger.Log.Info("Bot is running")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	scheduler.Stop()
	if err := discord.Close(); err != nil {
		logger.Log.WithError(err).Error("Error closing Discord session")
	}

	return nil
}

func loadEnvironmentVariables() error {
	if err := godotenv.Load(); err != nil {
		logger.Log.WithError(err).Info("No .env file found, relying on the environment")
	}
	return nil
}
