package handlers

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ThinkResponse defers the interaction with a "Bot is thinking..."
// placeholder so we have the full token window to respond.
func ThinkResponse(bot *discordgo.Session, i *discordgo.InteractionCreate) error {
	err := bot.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		return ErrorEphemeral(bot, i.Interaction, err)
	}
	return nil
}

// EphemeralThink is ThinkResponse visible only to the invoking user.
func EphemeralThink(bot *discordgo.Session, i *discordgo.InteractionCreate) error {
	err := bot.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		return ErrorEphemeral(bot, i.Interaction, err)
	}
	return nil
}

// EditInteractionResponse edits the deferred response. Content may be a
// string, *discordgo.WebhookEdit, embeds, files, or components in any order.
func EditInteractionResponse(bot *discordgo.Session, i *discordgo.Interaction, content ...any) (*discordgo.Message, error) {
	webhookEdit := webhookFromContents(content...)
	contentEdit(webhookEdit, content...)

	return bot.InteractionResponseEdit(i, webhookEdit)
}

// EphemeralFollowup sends a followup message only the invoking user sees,
// used when the original response already carries a result. Content may be
// a string, *discordgo.WebhookEdit, embeds, files, or components in any
// order.
func EphemeralFollowup(bot *discordgo.Session, i *discordgo.Interaction, content ...any) (*discordgo.Message, error) {
	webhookEdit := webhookFromContents(content...)
	contentEdit(webhookEdit, content...)

	return bot.FollowupMessageCreate(i, true, webhookParams(webhookEdit, discordgo.MessageFlagsEphemeral))
}

func webhookParams(edit *discordgo.WebhookEdit, flags discordgo.MessageFlags) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{Flags: flags, Files: edit.Files}
	if edit.Content != nil {
		params.Content = *edit.Content
	}
	if edit.Embeds != nil {
		params.Embeds = *edit.Embeds
	}
	if edit.Components != nil {
		params.Components = *edit.Components
	}
	return params
}

func webhookFromContents(content ...any) *discordgo.WebhookEdit {
	for _, m := range content {
		if edit, ok := m.(*discordgo.WebhookEdit); ok {
			return edit
		}
	}
	return &discordgo.WebhookEdit{}
}

func contentEdit(webhookEdit *discordgo.WebhookEdit, content ...any) {
	if len(content) == 0 {
		return
	}
	var newContent []string
	for _, m := range content {
		switch c := m.(type) {
		case string:
			newContent = append(newContent, c)
		case discordgo.MessageEmbed:
			appendEmbed(webhookEdit, &c)
		case *discordgo.MessageEmbed:
			appendEmbed(webhookEdit, c)
		case []*discordgo.MessageEmbed:
			if webhookEdit.Embeds == nil {
				webhookEdit.Embeds = &c
			} else {
				*webhookEdit.Embeds = append(*webhookEdit.Embeds, c...)
			}
		case discordgo.MessageComponent:
			appendComponent(webhookEdit, c)
		case []discordgo.MessageComponent:
			if webhookEdit.Components == nil {
				webhookEdit.Components = &c
			} else {
				*webhookEdit.Components = append(*webhookEdit.Components, c...)
			}
		case *discordgo.File:
			webhookEdit.Files = append(webhookEdit.Files, c)
		case []*discordgo.File:
			webhookEdit.Files = append(webhookEdit.Files, c...)
		case *discordgo.WebhookEdit:
			// already the base, skip
		default:
			newContent = append(newContent, fmt.Sprintf("%v", c))
		}
	}
	if len(newContent) > 0 {
		joined := strings.Join(newContent, "\n")
		webhookEdit.Content = &joined
	}
}

func appendEmbed(webhookEdit *discordgo.WebhookEdit, embed *discordgo.MessageEmbed) {
	if webhookEdit.Embeds == nil {
		webhookEdit.Embeds = &[]*discordgo.MessageEmbed{embed}
	} else {
		*webhookEdit.Embeds = append(*webhookEdit.Embeds, embed)
	}
}

func appendComponent(webhookEdit *discordgo.WebhookEdit, component discordgo.MessageComponent) {
	if webhookEdit.Components == nil {
		webhookEdit.Components = &[]discordgo.MessageComponent{component}
	} else {
		*webhookEdit.Components = append(*webhookEdit.Components, component)
	}
}
