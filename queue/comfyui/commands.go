package comfyui

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"flux_comfy_bot/entities"
)

const (
	StatusCommand  = "status"
	HistoryCommand = "history"
)

const (
	promptOption     = "prompt"
	resolutionOption = "resolution"
	loraOption       = "lora"
	upscaleOption    = "upscale"
	creativityOption = "creativity"
	seedOption       = "seed"
)

// extraLoras is how many numbered lora options follow the first one.
const extraLoras = 2

func (q *ComfyQueue) commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        q.commandName,
			Description: "Generate an image from a text prompt",
			Type:        discordgo.ChatApplicationCommand,
			Options:     q.generateOptions(),
		},
		{
			Name:        StatusCommand,
			Description: "Show backend and host status",
			Type:        discordgo.ChatApplicationCommand,
		},
		{
			Name:        HistoryCommand,
			Description: "Show your recent generations",
			Type:        discordgo.ChatApplicationCommand,
		},
	}
}

func (q *ComfyQueue) generateOptions() (options []*discordgo.ApplicationCommandOption) {
	options = []*discordgo.ApplicationCommandOption{
		commandOptions[promptOption],
		q.resolutionOption(),
		commandOptions[loraOption],
		commandOptions[upscaleOption],
		commandOptions[creativityOption],
		commandOptions[seedOption],
	}

	for i := 0; i < extraLoras; i++ {
		if len(options) >= 25 {
			log.Printf("Max options reached, skipping extra lora options")
			break
		}
		option := *commandOptions[loraOption]
		option.Name = loraName(i + 2)
		option.Description = "Additional style to stack onto the generation"
		options = append(options, &option)
	}

	return options
}

// resolutionOption builds its choices from the ratio catalog so the command
// always matches what the workflow accepts.
func (q *ComfyQueue) resolutionOption() *discordgo.ApplicationCommandOption {
	names := q.ratios.Names()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(names), 25))
	for _, name := range names {
		if len(choices) == 25 {
			log.Printf("WARNING: more ratios (%d) than discord allows choices, truncating", len(names))
			break
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: name,
		})
	}

	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        resolutionOption,
		Description: "Aspect ratio and base resolution",
		Required:    false,
		Choices:     choices,
	}
}

var (
	minUpscale    = float64(entities.MinUpscaleFactor)
	minCreativity = float64(entities.MinCreativity)
)

var commandOptions = map[string]*discordgo.ApplicationCommandOption{
	promptOption: {
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        promptOption,
		Description: "The text prompt to generate with",
		Required:    true,
	},
	loraOption: {
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         loraOption,
		Description:  "Style to apply. Append :strength to adjust, e.g. anime:0.8",
		Required:     false,
		Autocomplete: true,
	},
	upscaleOption: {
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        upscaleOption,
		Description: "Upscale factor for the finished image (default: 1)",
		Required:    false,
		MinValue:    &minUpscale,
		MaxValue:    entities.MaxUpscaleFactor,
	},
	creativityOption: {
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        creativityOption,
		Description: "Prompt enhancement level. 1 uses your prompt as-is (default: off)",
		Required:    false,
		MinValue:    &minCreativity,
		MaxValue:    entities.MaxCreativity,
	},
	seedOption: {
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        seedOption,
		Description: "Seed to reproduce a generation (default: random)",
		Required:    false,
	},
}
