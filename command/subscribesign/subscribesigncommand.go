package subscribesign

import (
	"TajiSignBot/logger"
	"TajiSignBot/models"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Subs services.SubscriptionStore

// CommandSubscribeSign subscribes (or unsubscribes) the current context to
// the batch summary broadcast: the channel when used in a server, the user's
// DM otherwise. Independent of the per-account auto-sign toggles.
func CommandSubscribeSign(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.RespondToInteraction(s, i, "An error occurred while processing your request.", true)
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		utils.RespondToInteraction(s, i, "Pick an action: on or off.", true)
		return
	}

	kind := "direct"
	channelID := ""
	target := "you by DM"
	if i.GuildID != "" {
		kind = "group"
		channelID = i.ChannelID
		target = "this channel"
	}

	switch options[0].StringValue() {
	case "on":
		if err := Subs.AddSubscription(models.SignResultTopic, userID, channelID, kind); err != nil {
			logger.Log.WithError(err).Error("Failed to add sign-result subscription")
			utils.RespondToInteraction(s, i, "Failed to subscribe. Please try again later.", true)
			return
		}
		utils.RespondToInteraction(s, i,
			"Subscribed. The daily sign-in summary will be sent to "+target+".", true)
	case "off":
		if err := Subs.RemoveSubscription(models.SignResultTopic, userID, channelID); err != nil {
			logger.Log.WithError(err).Error("Failed to remove sign-result subscription")
			utils.RespondToInteraction(s, i, "Failed to unsubscribe. Please try again later.", true)
			return
		}
		utils.RespondToInteraction(s, i, "Unsubscribed from the daily sign-in summary.", true)
	default:
		utils.RespondToInteraction(s, i, "Pick an action: on or off.", true)
	}
}
