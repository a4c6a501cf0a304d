package listaccounts

import (
	"fmt"
	"strings"

	"TajiSignBot/logger"
	"TajiSignBot/models"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Bindings services.BindingStore

// CommandListAccounts shows every linked role with its auto-sign setting.
func CommandListAccounts(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.RespondToInteraction(s, i, "An error occurred while processing your request.", true)
		return
	}

	bindings, err := Bindings.BindingsByUser(userID)
	if err != nil {
		logger.Log.WithError(err).Errorf("Failed to load bindings for user %s", userID)
		utils.RespondToInteraction(s, i, "Failed to load your accounts. Please try again later.", true)
		return
	}
	if len(bindings) == 0 {
		utils.RespondToInteraction(s, i, "No Tajiduo account linked yet. Use /login first.", true)
		return
	}

	lines := make([]string, 0, len(bindings)+1)
	lines = append(lines, "Your linked accounts:")
	for _, b := range bindings {
		lines = append(lines, fmt.Sprintf("- %s (account %s, auto sign: %s)",
			b.DisplayName(), b.TaygedoUID, describeMode(b.AutoSign)))
	}

	utils.RespondToInteraction(s, i, strings.Join(lines, "\n"), true)
}

func describeMode(mode string) string {
	switch mode {
	case models.AutoSignOn:
		return "on, DM report"
	case models.AutoSignOff, "":
		return "off"
	default:
		return fmt.Sprintf("on, summary in <#%s>", mode)
	}
}
