package queue

import (
	"github.com/bwmarrin/discordgo"
)

type Queue[item Item] interface {
	Start(botSession *discordgo.Session)
	NewItem(interaction *discordgo.Interaction, options ...func(item)) item
	Add(item item) (int, error)
	Remove(message *discordgo.MessageInteraction) error
	Interrupt(i *discordgo.Interaction) error

	Commands() []*discordgo.ApplicationCommand
	Handlers() CommandHandlers
	Components() Components

	Stop()
}

type StartStop interface {
	Start(botSession *discordgo.Session)
	Stop()
}

type Item interface {
	Interaction() *discordgo.Interaction
}

type Handler func(s *discordgo.Session, i *discordgo.InteractionCreate) error

// CommandHandlers routes interactions by type, then by command or component
// name.
type CommandHandlers map[discordgo.InteractionType]map[string]Handler

type Components map[string]Handler
