package comfyui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"flux_comfy_bot/discord_bot/handlers"
	"flux_comfy_bot/entities"
	"flux_comfy_bot/queue"
	"flux_comfy_bot/utils"
)

func (q *ComfyQueue) handlers() queue.CommandHandlers {
	return queue.CommandHandlers{
		discordgo.InteractionApplicationCommand: {
			q.commandName:  q.processGenerateCommand,
			StatusCommand:  q.processStatusCommand,
			HistoryCommand: q.processHistoryCommand,
		},
		discordgo.InteractionApplicationCommandAutocomplete: {
			q.commandName: q.processAutocomplete,
		},
	}
}

func (q *ComfyQueue) components() queue.Components {
	return queue.Components{
		handlers.Cancel:       q.removeFromQueue,
		handlers.Interrupt:    q.interrupt,
		handlers.RerollButton: q.reroll,
	}
}

func loraName(n int) string {
	return fmt.Sprintf("%s%d", loraOption, n)
}

// processGenerateCommand validates the request synchronously. Bad input is
// rejected here, before a job ever exists.
func (q *ComfyQueue) processGenerateCommand(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if err := handlers.ThinkResponse(s, i); err != nil {
		return err
	}

	optionMap := utils.GetOpts(i.ApplicationCommandData())

	prompt, ok := optionMap[promptOption]
	if !ok {
		return handlers.ErrorEdit(s, i.Interaction, "You need to provide a prompt.")
	}

	options := []func(*ComfyQueueItem){WithPrompt(prompt.StringValue())}

	if option, ok := optionMap[resolutionOption]; ok {
		options = append(options, WithResolution(option.StringValue()))
	}
	if option, ok := optionMap[upscaleOption]; ok {
		options = append(options, WithUpscale(int(option.IntValue())))
	}
	if option, ok := optionMap[creativityOption]; ok {
		options = append(options, WithCreativity(int(option.IntValue())))
	}
	if option, ok := optionMap[seedOption]; ok {
		options = append(options, WithSeed(option.IntValue()))
	}

	loras, err := q.parseLoras(optionMap)
	if err != nil {
		return handlers.ErrorEdit(s, i.Interaction, err)
	}
	if len(loras) > 0 {
		options = append(options, WithLoras(loras))
	}

	item := q.NewItem(i.Interaction, options...)

	if err := item.Request.Validate(q.ratios, q.loras); err != nil {
		return handlers.ErrorEdit(s, i.Interaction, err)
	}

	position, err := q.Add(item)
	if err != nil {
		return handlers.ErrorEdit(s, i.Interaction, "Error adding your request to the queue.", err)
	}

	queueString := fmt.Sprintf(
		"I'm dreaming something up for you. You are currently #%d in line.\n<@%s> asked me to generate\n```\n%s\n```",
		position,
		item.Request.UserID,
		prompt.StringValue(),
	)

	message, err := handlers.EditInteractionResponse(s, i.Interaction, queueString, handlers.Components[handlers.Cancel])
	if err != nil {
		return err
	}
	if item.DiscordInteraction != nil && item.DiscordInteraction.Message == nil && message != nil {
		item.DiscordInteraction.Message = message
	}

	return nil
}

// parseLoras reads the numbered lora options, each either a catalog file
// name or "file:strength".
func (q *ComfyQueue) parseLoras(optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption) ([]entities.LoraSelection, error) {
	var selections []entities.LoraSelection

	for n := 1; n <= 1+extraLoras; n++ {
		name := loraOption
		if n > 1 {
			name = loraName(n)
		}
		option, ok := optionMap[name]
		if !ok {
			continue
		}

		value := option.StringValue()
		selection := entities.LoraSelection{File: value, Strength: 1}

		if file, strength, found := strings.Cut(value, ":"); found {
			parsed, err := strconv.ParseFloat(strength, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid lora strength %q", strength)
			}
			selection.File = file
			selection.Strength = parsed
		}

		if q.loras != nil {
			if lora := q.loras.Get(selection.File); lora == nil {
				// the autocomplete shows display names, resolve those too
				for _, candidate := range q.loras.AvailableLoras {
					if candidate.Name == selection.File {
						selection.File = candidate.File
						if selection.Strength == 1 && candidate.Weight != 0 {
							selection.Strength = candidate.Weight
						}
						break
					}
				}
			} else if selection.Strength == 1 && lora.Weight != 0 {
				selection.Strength = lora.Weight
			}
		}

		selections = append(selections, selection)
	}

	return selections, nil
}

func (q *ComfyQueue) processAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()

	var input string
	for _, option := range data.Options {
		if option.Focused && strings.HasPrefix(option.Name, loraOption) {
			input = option.StringValue()
			break
		}
	}

	choices := q.loraChoices(input)

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

func (q *ComfyQueue) loraChoices(input string) []*discordgo.ApplicationCommandOptionChoice {
	if q.loras == nil {
		return nil
	}

	// keep a trailing ":strength" out of the match input
	search, strength, hasStrength := strings.Cut(input, ":")

	var choices []*discordgo.ApplicationCommandOptionChoice
	appendChoice := func(lora *entities.Lora) {
		value := lora.File
		name := lora.Name
		if hasStrength {
			value += ":" + strength
			name += ":" + strength
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: value,
		})
	}

	if search == "" {
		for i := range q.loras.AvailableLoras {
			if len(choices) == 25 {
				break
			}
			appendChoice(&q.loras.AvailableLoras[i])
		}
		return choices
	}

	matches := fuzzy.FindFrom(search, q.loras)
	for _, match := range matches {
		if len(choices) == 25 {
			break
		}
		appendChoice(&q.loras.AvailableLoras[match.Index])
	}
	return choices
}

func (q *ComfyQueue) processStatusCommand(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if err := handlers.ThinkResponse(s, i); err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title: "Status",
		Color: 0x57F287,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if stats, err := q.client.SystemStats(ctx); err != nil {
		embed.Color = 0xED4245
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Backend",
			Value: fmt.Sprintf("unreachable at `%s`: %v", q.client.Host(), err),
		})
	} else {
		value := fmt.Sprintf("`%s` (ComfyUI %s)", q.client.Host(), stats.System.ComfyUIVersion)
		for _, device := range stats.Devices {
			value += fmt.Sprintf("\n%s: %s free of %s",
				device.Name, humanize.IBytes(device.VRAMFree), humanize.IBytes(device.VRAMTotal))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Backend",
			Value: value,
		})
	}

	if virtual, err := mem.VirtualMemory(); err == nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Host memory",
			Value: fmt.Sprintf("%s used of %s (%.0f%%)",
				humanize.IBytes(virtual.Used), humanize.IBytes(virtual.Total), virtual.UsedPercent),
			Inline: true,
		})
	}
	if uptime, err := host.Uptime(); err == nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Host uptime",
			Value:  (time.Duration(uptime) * time.Second).String(),
			Inline: true,
		})
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Queue",
		Value:  fmt.Sprintf("%d waiting, %d running", len(q.queue), q.activeCount()),
		Inline: true,
	})

	_, err := handlers.EditInteractionResponse(s, i.Interaction, embed)
	return err
}

func (q *ComfyQueue) processHistoryCommand(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if q.historyRepo == nil {
		return handlers.ErrorEphemeral(s, i.Interaction, "History is not enabled.")
	}
	if err := handlers.EphemeralThink(s, i); err != nil {
		return err
	}

	user := utils.GetUser(i.Interaction)
	if user == nil {
		return handlers.ErrorEdit(s, i.Interaction, errors.New("could not resolve user"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := q.historyRepo.ListByUser(ctx, user.ID, 10)
	if err != nil {
		return handlers.ErrorEdit(s, i.Interaction, "Error loading history.", err)
	}
	if len(entries) == 0 {
		_, err := handlers.EditInteractionResponse(s, i.Interaction, "No generations yet.")
		return err
	}

	var sb strings.Builder
	for _, entry := range entries {
		prompt := entry.Prompt
		if len(prompt) > 80 {
			prompt = prompt[:80] + "..."
		}
		sb.WriteString(fmt.Sprintf("%s · **%s** · seed `%d`\n%s\n",
			humanize.Time(entry.CreatedAt), entry.Status, entry.Seed, prompt))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Your recent generations",
		Description: sb.String(),
		Color:       0x5865F2,
	}

	_, err = handlers.EditInteractionResponse(s, i.Interaction, embed)
	return err
}

// removeFromQueue handles the Cancel button on a queued item.
func (q *ComfyQueue) removeFromQueue(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if i.Message == nil || i.Message.Interaction == nil {
		return handlers.ErrorEphemeral(s, i.Interaction, "Could not find the queued generation for this message.")
	}

	if err := q.Remove(i.Message.Interaction); err != nil {
		return handlers.ErrorEphemeral(s, i.Interaction, err)
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content: "Cancelled.",
		},
	})
}

// interrupt handles the Interrupt button on a running generation.
func (q *ComfyQueue) interrupt(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if err := q.Interrupt(i.Interaction); err != nil {
		return handlers.ErrorEphemeral(s, i.Interaction, err)
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content: "Interrupting...",
		},
	})
}

// reroll queues the same request again with a fresh seed and request ID.
func (q *ComfyQueue) reroll(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if i.Message == nil || i.Message.Interaction == nil {
		return handlers.ErrorEphemeral(s, i.Interaction, "Could not find the generation to reroll.")
	}

	previous, ok := q.requestByMessage(i.Message)
	if !ok {
		return handlers.ErrorEphemeral(s, i.Interaction, "The original generation is no longer tracked.")
	}

	if err := handlers.ThinkResponse(s, i); err != nil {
		return err
	}

	item := q.NewItem(i.Interaction, WithType(ItemTypeReroll))

	request := previous
	request.RequestID = item.Request.RequestID
	request.UserID = item.Request.UserID
	request.ChannelID = item.Request.ChannelID
	request.Seed = entities.RandomSeed
	request.EnhancedPrompt = ""
	request.CreatedAt = time.Now()
	item.Request = &request

	position, err := q.Add(item)
	if err != nil {
		return handlers.ErrorEdit(s, i.Interaction, "Error adding your request to the queue.", err)
	}

	message, err := handlers.EditInteractionResponse(s, i.Interaction,
		fmt.Sprintf("Rerolling with a new seed. You are currently #%d in line.", position),
		handlers.Components[handlers.Cancel])
	if err != nil {
		return err
	}
	if item.DiscordInteraction != nil && item.DiscordInteraction.Message == nil && message != nil {
		item.DiscordInteraction.Message = message
	}

	return nil
}

// requestByMessage finds the request that produced a result message, so
// components on that message can act on it. Recent jobs are answered from
// memory, older ones from the history table.
func (q *ComfyQueue) requestByMessage(message *discordgo.Message) (entities.GenerationRequest, bool) {
	if message.Interaction != nil {
		q.mu.Lock()
		requestID, ok := q.interactions[message.Interaction.ID]
		q.mu.Unlock()
		if ok {
			if job, found := q.jobs.Get(requestID); found && job.Request != nil {
				return *job.Request, true
			}
		}
	}

	if q.historyRepo == nil {
		return entities.GenerationRequest{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry, err := q.historyRepo.GetByMessage(ctx, message.ID)
	if err != nil {
		log.Printf("Error looking up generation for message %s: %v", message.ID, err)
		return entities.GenerationRequest{}, false
	}

	return entities.GenerationRequest{
		UserID:           entry.UserID,
		ChannelID:        entry.ChannelID,
		Prompt:           entry.Prompt,
		Resolution:       entry.Resolution,
		Loras:            entry.Loras,
		UpscaleFactor:    entry.Upscale,
		Creativity:       entry.Creativity,
		Seed:             entities.RandomSeed,
		WorkflowFilename: q.workflowFilename,
	}, true
}
