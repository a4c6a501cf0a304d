package help

import (
	"TajiSignBot/utils"

	"github.com/bwmarrin/discordgo"
)

const helpText = `**Tajiduo sign-in bot**

- /login - link a Tajiduo account by phone number
- /signnow - sign in all your accounts immediately
- /autosign mode:on - daily automatic sign-in with a DM report
- /autosign mode:here - daily automatic sign-in with a summary in this channel
- /autosign mode:off - turn automatic sign-in off
- /listaccounts - list your linked accounts
- /removeaccount - unlink an account
- /subscribesign action:on|off - subscribe this channel (or your DM) to the daily batch summary

Sign-ins are deduplicated per day: running /signnow twice is safe.`

func CommandHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	utils.RespondToInteraction(s, i, helpText, true)
}
