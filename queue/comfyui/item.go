package comfyui

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"flux_comfy_bot/entities"
)

type ItemType int

const (
	ItemTypeGenerate ItemType = iota
	ItemTypeReroll
)

type ComfyQueueItem struct {
	Type ItemType

	Request *entities.GenerationRequest

	Created            time.Time
	DiscordInteraction *discordgo.Interaction
	Interrupt          chan *discordgo.Interaction
}

func (item *ComfyQueueItem) Interaction() *discordgo.Interaction {
	return item.DiscordInteraction
}

func (q *ComfyQueue) NewItem(interaction *discordgo.Interaction, options ...func(*ComfyQueueItem)) *ComfyQueueItem {
	item := q.DefaultQueueItem()
	item.DiscordInteraction = interaction

	if interaction != nil {
		if user := interaction.Member; user != nil && user.User != nil {
			item.Request.UserID = user.User.ID
		} else if interaction.User != nil {
			item.Request.UserID = interaction.User.ID
		}
		item.Request.ChannelID = interaction.ChannelID
	}

	for _, option := range options {
		option(item)
	}

	return item
}

func (q *ComfyQueue) DefaultQueueItem() *ComfyQueueItem {
	return &ComfyQueueItem{
		Type: ItemTypeGenerate,
		Request: &entities.GenerationRequest{
			RequestID:        uuid.New().String(),
			Resolution:       q.defaultResolution,
			UpscaleFactor:    entities.MinUpscaleFactor,
			Creativity:       entities.CreativityOff,
			Seed:             entities.RandomSeed,
			WorkflowFilename: q.workflowFilename,
			CreatedAt:        time.Now(),
		},
		Created: time.Now(),
	}
}

func WithPrompt(prompt string) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Request.Prompt = prompt
	}
}

func WithResolution(resolution string) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Request.Resolution = resolution
	}
}

func WithLoras(loras []entities.LoraSelection) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Request.Loras = loras
	}
}

func WithUpscale(factor int) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Request.UpscaleFactor = factor
	}
}

func WithCreativity(creativity int) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Request.Creativity = creativity
	}
}

func WithSeed(seed int64) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Request.Seed = seed
	}
}

func WithType(itemType ItemType) func(*ComfyQueueItem) {
	return func(item *ComfyQueueItem) {
		item.Type = itemType
	}
}
