package handlers

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Token is the bot token, kept so it can be scrubbed from error output
// before anything reaches a channel.
var Token *string

// ErrorEdit replaces the deferred response with an error message and a
// deletion button.
func ErrorEdit(bot *discordgo.Session, i *discordgo.Interaction, errorContent ...any) error {
	embed, toPrint := errorEmbed(i, errorContent...)

	logError(toPrint, i)

	_, err := bot.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    sanitizeToken(&toPrint),
		Components: &[]discordgo.MessageComponent{Components[DeleteButton]},
		Embeds:     &embed,
	})
	if err != nil {
		log.Printf("Error editing interaction for error (%v): %v", toPrint, err)
	}
	return err
}

// ErrorEphemeral responds with an error message only the invoking user sees.
func ErrorEphemeral(bot *discordgo.Session, i *discordgo.Interaction, errorContent ...any) error {
	embed, toPrint := errorEmbed(i, errorContent...)

	logError(toPrint, i)

	return bot.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: toPrint,
			Embeds:  embed,
		},
	})
}

// ErrorFollowup sends the error as a followup, for when the original
// response already holds content worth keeping.
func ErrorFollowup(bot *discordgo.Session, i *discordgo.Interaction, errorContent ...any) error {
	embed, toPrint := errorEmbed(i, errorContent...)

	logError(toPrint, i)

	_, err := bot.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content:    *sanitizeToken(&toPrint),
		Components: []discordgo.MessageComponent{Components[DeleteButton]},
		Embeds:     embed,
	})
	return err
}

func formatError(errorContent ...any) string {
	if len(errorContent) < 1 {
		errorContent = []any{"An unknown error has occurred"}
	}

	var errors []string
	for _, content := range errorContent {
		switch content := content.(type) {
		case string:
			errors = append(errors, content)
		case []string:
			errors = append(errors, content...)
		case error:
			errors = append(errors, content.Error())
		case []any:
			errors = append(errors, formatError(content...))
		default:
			errors = append(errors, fmt.Sprintf("An unknown error has occurred\nReceived: %v", content))
		}
	}

	errorString := strings.Join(errors, "\n")
	if len(errors) > 1 {
		errorString = "Multiple errors have occurred:\n" + errorString
	}

	return errorString
}

func errorEmbed(i *discordgo.Interaction, errorContent ...any) ([]*discordgo.MessageEmbed, string) {
	errorString := formatError(errorContent)

	embed := []*discordgo.MessageEmbed{
		{
			Type: discordgo.EmbedTypeRich,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Error",
					Value:  *sanitizeToken(&errorString),
					Inline: false,
				},
			},
			Color: 0xED4245,
		},
	}

	var toPrint strings.Builder

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		toPrint.WriteString(fmt.Sprintf(
			"Could not run the [command] `%v`",
			i.ApplicationCommandData().Name,
		))
	case discordgo.InteractionMessageComponent:
		toPrint.WriteString(fmt.Sprintf(
			"Could not run the [button] `%v`",
			i.MessageComponentData().CustomID,
		))
		if i.Message != nil {
			toPrint.WriteString(fmt.Sprintf(" on message https://discord.com/channels/%v/%v/%v", i.GuildID, i.ChannelID, i.Message.ID))
		}
	}
	return embed, toPrint.String()
}

func sanitizeToken(errorString *string) *string {
	if errorString == nil {
		return errorString
	}
	if Token == nil {
		return errorString
	}
	if strings.Contains(*errorString, *Token) {
		log.Printf("WARNING: Bot token was found in an error message, replacing")
		sanitizedString := strings.ReplaceAll(*errorString, *Token, "[TOKEN]")
		errorString = &sanitizedString
	}
	return errorString
}

func logError(errorString string, i *discordgo.Interaction) {
	log.Printf("ERROR: %v", errorString)
	if i == nil || i.Member == nil {
		return
	}
	log.Printf("User: %v", i.Member.User.Username)
}
