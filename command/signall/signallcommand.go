package signall

import (
	"TajiSignBot/configuration"
	"TajiSignBot/logger"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Batch *services.Batch

// CommandSignAll triggers the full batch sign-in outside the schedule.
// Developer only; a batch can hammer the remote API for minutes.
func CommandSignAll(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.RespondToInteraction(s, i, "An error occurred while processing your request.", true)
		return
	}

	if userID != configuration.Get().Discord.DeveloperID {
		utils.RespondToInteraction(s, i, "This command is restricted to the bot developer.", true)
		return
	}

	if err := utils.DeferInteraction(s, i, true); err != nil {
		logger.Log.WithError(err).Error("Failed to defer sign-all response")
		return
	}

	go func() {
		summary := Batch.Run(*configuration.Get())
		utils.SendFollowupMessage(s, i, summary, true)
	}()
}
