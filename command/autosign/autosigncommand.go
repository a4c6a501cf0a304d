package autosign

import (
	"TajiSignBot/logger"
	"TajiSignBot/models"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Bindings services.BindingStore

// CommandAutoSign sets the user's automatic sign-in preference: "on" for a
// daily DM report, "off" to opt out, "here" to post a summary into the
// current server channel instead.
func CommandAutoSign(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.RespondToInteraction(s, i, "An error occurred while processing your request.", true)
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		utils.RespondToInteraction(s, i, "Pick a mode: on, off or here.", true)
		return
	}

	var mode, reply string
	switch options[0].StringValue() {
	case "on":
		mode = models.AutoSignOn
		reply = "Automatic sign-in enabled. Results will be sent to you by DM."
	case "off":
		mode = models.AutoSignOff
		reply = "Automatic sign-in disabled."
	case "here":
		if i.GuildID == "" {
			utils.RespondToInteraction(s, i, "The here mode only works in a server channel.", true)
			return
		}
		mode = i.ChannelID
		reply = "Automatic sign-in enabled. A daily summary will be posted in this channel."
	default:
		utils.RespondToInteraction(s, i, "Pick a mode: on, off or here.", true)
		return
	}

	rows, err := Bindings.SetAutoSign(userID, mode)
	if err != nil {
		logger.Log.WithError(err).Errorf("Failed to set auto-sign mode for user %s", userID)
		utils.RespondToInteraction(s, i, "Failed to update your preference. Please try again later.", true)
		return
	}
	if rows == 0 {
		utils.RespondToInteraction(s, i, "No Tajiduo account linked yet. Use /login first.", true)
		return
	}

	utils.RespondToInteraction(s, i, reply, true)
}
