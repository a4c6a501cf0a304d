package removeaccount

import (
	"fmt"
	"strconv"
	"strings"

	"TajiSignBot/logger"
	"TajiSignBot/services"
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

var Bindings services.BindingStore

// CommandRemoveAccount shows one button per linked role; clicking it deletes
// the binding.
func CommandRemoveAccount(s *discordgo.Session, i *discordgo.InteractionCreate) {
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

	var components []discordgo.MessageComponent
	var currentRow []discordgo.MessageComponent
	for _, b := range bindings {
		currentRow = append(currentRow, discordgo.Button{
			Label:    b.DisplayName(),
			Style:    discordgo.DangerButton,
			CustomID: fmt.Sprintf("remove_account_%d", b.ID),
		})
		if len(currentRow) == 5 {
			components = append(components, discordgo.ActionsRow{Components: currentRow})
			currentRow = nil
		}
	}
	if len(currentRow) > 0 {
		components = append(components, discordgo.ActionsRow{Components: currentRow})
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Select the account to remove:",
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: components,
		},
	})
	if err != nil {
		logger.Log.WithError(err).Error("Error responding with account buttons")
	}
}

// HandleAccountSelection deletes the chosen binding after verifying it
// belongs to the clicking user.
func HandleAccountSelection(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := utils.GetUserID(i)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to get user ID")
		utils.UpdateInteractionMessage(s, i, "An error occurred while processing your selection.")
		return
	}

	customID := i.MessageComponentData().CustomID
	bindingID, err := strconv.ParseUint(strings.TrimPrefix(customID, "remove_account_"), 10, 64)
	if err != nil {
		logger.Log.WithError(err).Errorf("Bad remove-account custom ID %q", customID)
		utils.UpdateInteractionMessage(s, i, "An error occurred while processing your selection.")
		return
	}

	bindings, err := Bindings.BindingsByUser(userID)
	if err != nil {
		logger.Log.WithError(err).Errorf("Failed to load bindings for user %s", userID)
		utils.UpdateInteractionMessage(s, i, "Failed to load your accounts. Please try again later.")
		return
	}

	for _, b := range bindings {
		if uint64(b.ID) != bindingID {
			continue
		}
		if err := Bindings.DeleteBinding(b.ID); err != nil {
			logger.Log.WithError(err).Errorf("Failed to delete binding %d", b.ID)
			utils.UpdateInteractionMessage(s, i, "Failed to remove the account. Please try again later.")
			return
		}
		logger.Log.Infof("User %s removed account binding %s", userID, b.DisplayName())
		utils.UpdateInteractionMessage(s, i, fmt.Sprintf("Account %s removed.", b.DisplayName()))
		return
	}

	utils.UpdateInteractionMessage(s, i, "That account is no longer linked.")
}
