package login

import (
	"fmt"

	"TajiSignBot/logger"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Flow *services.LoginFlow

// CommandLogin hands out the login-page link and waits in the background for
// the page to be submitted, then reports the outcome as a followup.
func CommandLogin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.RespondToInteraction(s, i, "An error occurred while processing your request.", true)
		return
	}

	url := Flow.Begin(userID, i.ChannelID, i.GuildID)
	utils.RespondToInteraction(s, i,
		fmt.Sprintf("Open this link within 3 minutes to link your Tajiduo account:\n%s", url), true)

	go func() {
		result := Flow.Await(userID)
		utils.SendFollowupMessage(s, i, result, true)
	}()
}
