package signnow

import (
	"TajiSignBot/logger"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Signer *services.Signer

// CommandSignNow runs the daily sign-in for all of the user's accounts right
// away. The remote calls take a while, so the response is deferred.
func CommandSignNow(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.RespondToInteraction(s, i, "An error occurred while processing your request.", true)
		return
	}

	if err := utils.DeferInteraction(s, i, true); err != nil {
		logger.Log.WithError(err).Error("Failed to defer sign-now response")
		return
	}

	result := Signer.SignUser(userID)
	utils.SendFollowupMessage(s, i, result, true)
}
