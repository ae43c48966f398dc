package handlers

import (
	"github.com/bwmarrin/discordgo"
)

const (
	// Cancel removes an item that is still waiting in the queue.
	Cancel = "flux_cancel"
	// Interrupt stops the generation currently running on the backend.
	Interrupt = "flux_interrupt"

	RerollButton = "flux_reroll"

	DeleteButton     = "delete_error_message"
	DeleteGeneration = "delete_generation"
)

var Components = map[string]discordgo.MessageComponent{
	Cancel: discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Cancel",
				Style:    discordgo.DangerButton,
				CustomID: Cancel,
			},
		},
	},
	Interrupt: discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Interrupt",
				Style:    discordgo.DangerButton,
				CustomID: Interrupt,
				Emoji: &discordgo.ComponentEmoji{
					Name: "✋",
				},
			},
		},
	},
	DeleteButton: discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Delete this message",
				Style:    discordgo.DangerButton,
				CustomID: DeleteButton,
			},
		},
	},
	DeleteGeneration: discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Delete",
				Style:    discordgo.DangerButton,
				CustomID: DeleteGeneration,
				Emoji: &discordgo.ComponentEmoji{
					Name: "🗑️",
				},
			},
		},
	},
	RerollButton: discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Reroll",
				Style:    discordgo.SecondaryButton,
				CustomID: RerollButton,
				Emoji: &discordgo.ComponentEmoji{
					Name: "🎲",
				},
			},
			discordgo.Button{
				Label:    "Delete",
				Style:    discordgo.DangerButton,
				CustomID: DeleteGeneration,
				Emoji: &discordgo.ComponentEmoji{
					Name: "🗑️",
				},
			},
		},
	},
}
