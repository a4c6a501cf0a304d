package command

import (
	"strings"

	"TajiSignBot/command/autosign"
	"TajiSignBot/command/help"
	"TajiSignBot/command/listaccounts"
	"TajiSignBot/command/login"
	"TajiSignBot/command/removeaccount"
	"TajiSignBot/command/signall"
	"TajiSignBot/command/signnow"
	"TajiSignBot/command/subscribesign"
	"TajiSignBot/logger"
	"TajiSignBot/services"
	"TajiSignBot/store"

	"github.com/bwmarrin/discordgo"
)

var Handlers = map[string]func(*discordgo.Session, *discordgo.InteractionCreate){}

// WireDependencies hands the shared service instances to the command
// packages. Must run before the first interaction is dispatched.
func WireDependencies(flow *services.LoginFlow, signer *services.Signer, batch *services.Batch, st *store.Store) {
	login.Flow = flow
	signnow.Signer = signer
	signall.Batch = batch
	autosign.Bindings = st
	listaccounts.Bindings = st
	removeaccount.Bindings = st
	subscribesign.Subs = st
}

func RegisterCommands(s *discordgo.Session) {
	logger.Log.Info("Registering global commands")

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "login",
			Description: "Link a Tajiduo account by phone number",
		},
		{
			Name:        "signnow",
			Description: "Sign in all your linked accounts immediately",
		},
		{
			Name:        "autosign",
			Description: "Configure daily automatic sign-in",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "on for a DM report, here for a channel summary, off to disable",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
						{Name: "here", Value: "here"},
					},
				},
			},
		},
		{
			Name:        "signall",
			Description: "Run the batch sign-in for every account now (developer only)",
		},
		{
			Name:        "subscribesign",
			Description: "Subscribe this channel or your DM to the daily batch summary",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "on to subscribe, off to unsubscribe",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
					},
				},
			},
		},
		{
			Name:        "listaccounts",
			Description: "List your linked Tajiduo accounts",
		},
		{
			Name:        "removeaccount",
			Description: "Unlink a Tajiduo account",
		},
		{
			Name:        "help",
			Description: "How to use the sign-in bot",
		},
	}

	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commands)
	if err != nil {
		logger.Log.WithError(err).Error("Error registering global commands")
		return
	}

	Handlers["login"] = login.CommandLogin
	Handlers["signnow"] = signnow.CommandSignNow
	Handlers["autosign"] = autosign.CommandAutoSign
	Handlers["signall"] = signall.CommandSignAll
	Handlers["subscribesign"] = subscribesign.CommandSubscribeSign
	Handlers["listaccounts"] = listaccounts.CommandListAccounts
	Handlers["removeaccount"] = removeaccount.CommandRemoveAccount
	Handlers["remove_account_select"] = removeaccount.HandleAccountSelection
	Handlers["help"] = help.CommandHelp

	logger.Log.Info("Global commands registered and handlers set up")
}

func HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h, ok := Handlers[i.ApplicationCommandData().Name]; ok {
		h(s, i)
	}
}

func HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	if strings.HasPrefix(customID, "remove_account_") {
		Handlers["remove_account_select"](s, i)
	}
}
