package discord_bot

import (
	"errors"
	"log"

	"github.com/bwmarrin/discordgo"

	"flux_comfy_bot/discord_bot/handlers"
	"flux_comfy_bot/queue"
)

type Bot interface {
	Start()
}

// Registrable is a queue that brings its own slash commands, interaction
// handlers and message components to register on the session.
type Registrable interface {
	queue.StartStop
	Commands() []*discordgo.ApplicationCommand
	Handlers() queue.CommandHandlers
	Components() queue.Components
}

type botImpl struct {
	botSession         *discordgo.Session
	guildID            string
	queues             []Registrable
	registeredCommands []*discordgo.ApplicationCommand
	commandHandlers    queue.CommandHandlers
	components         queue.Components
	removeCommands     bool
}

type Config struct {
	BotToken       string
	GuildID        string
	Queues         []Registrable
	RemoveCommands bool
}

func New(cfg Config) (Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("missing bot token")
	}

	if len(cfg.Queues) == 0 {
		return nil, errors.New("missing queues")
	}

	botSession, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}

	botSession.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})
	err = botSession.Open()
	if err != nil {
		return nil, err
	}

	bot := &botImpl{
		botSession:         botSession,
		guildID:            cfg.GuildID,
		queues:             cfg.Queues,
		registeredCommands: make([]*discordgo.ApplicationCommand, 0),
		commandHandlers: queue.CommandHandlers{
			discordgo.InteractionApplicationCommand:             make(map[string]queue.Handler),
			discordgo.InteractionApplicationCommandAutocomplete: make(map[string]queue.Handler),
			discordgo.InteractionMessageComponent:               make(map[string]queue.Handler),
		},
		components:     make(queue.Components),
		removeCommands: cfg.RemoveCommands,
	}
	bot.components[handlers.DeleteButton] = bot.deleteMessage
	bot.components[handlers.DeleteGeneration] = bot.deleteMessage

	for _, q := range cfg.Queues {
		if err := bot.register(q); err != nil {
			return nil, err
		}
	}

	botSession.AddHandler(bot.handle)

	return bot, nil
}

// register merges a queue's handlers into the bot's routing tables and
// creates its slash commands. Commands are guild scoped when a guild ID was
// configured, global otherwise.
func (b *botImpl) register(q Registrable) error {
	for interactionType, handlerMap := range q.Handlers() {
		if b.commandHandlers[interactionType] == nil {
			b.commandHandlers[interactionType] = make(map[string]queue.Handler)
		}
		for name, handler := range handlerMap {
			if _, ok := b.commandHandlers[interactionType][name]; ok {
				return errors.New("duplicate handler for " + name)
			}
			b.commandHandlers[interactionType][name] = handler
		}
	}

	for customID, handler := range q.Components() {
		if _, ok := b.components[customID]; ok {
			return errors.New("duplicate component handler for " + customID)
		}
		b.components[customID] = handler
	}

	for _, command := range q.Commands() {
		log.Printf("Adding command '%s'...", command.Name)

		created, err := b.botSession.ApplicationCommandCreate(b.botSession.State.User.ID, b.guildID, command)
		if err != nil {
			log.Printf("Error creating '%s' command: %v", command.Name, err)

			return err
		}

		b.registeredCommands = append(b.registeredCommands, created)
	}

	return nil
}

func (b *botImpl) handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var err error

	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		name := i.ApplicationCommandData().Name

		handler, ok := b.commandHandlers[i.Type][name]
		if !ok {
			log.Printf("Unknown command '%v'", name)

			return
		}
		err = handler(s, i)
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID

		handler, ok := b.components[customID]
		if !ok {
			log.Printf("Unknown message component '%v'", customID)

			return
		}
		err = handler(s, i)
	}

	if err != nil {
		log.Printf("Error handling interaction %v: %v", i.ID, err)
	}
}

func (b *botImpl) deleteMessage(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.ChannelMessageDelete(i.ChannelID, i.Message.ID)
}

// Start runs every queue and blocks until the first one stops polling.
func (b *botImpl) Start() {
	for _, q := range b.queues[1:] {
		go q.Start(b.botSession)
	}
	b.queues[0].Start(b.botSession)

	if err := b.teardown(); err != nil {
		log.Printf("Error tearing down bot: %v", err)
	}
}

func (b *botImpl) teardown() error {
	if b.removeCommands {
		log.Printf("Removing all commands added by bot...")

		for _, v := range b.registeredCommands {
			log.Printf("Removing command '%v'...", v.Name)

			err := b.botSession.ApplicationCommandDelete(b.botSession.State.User.ID, b.guildID, v.ID)
			if err != nil {
				log.Printf("Cannot delete '%v' command: %v", v.Name, err)
			}
		}
	}

	return b.botSession.Close()
}
