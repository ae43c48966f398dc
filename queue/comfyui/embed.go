package comfyui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"flux_comfy_bot/composite_renderer"
	"flux_comfy_bot/entities"
	"flux_comfy_bot/utils"
)

func resultEmbed(item *ComfyQueueItem, job *entities.Job, loras *entities.LoraCatalog, ratios *entities.RatioCatalog) *discordgo.MessageEmbed {
	user := utils.GetUser(item.DiscordInteraction)
	username := utils.GetUsername(item.DiscordInteraction)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Image generated by %s", username),
		Description: job.Request.Prompt,
		Type:        discordgo.EmbedTypeImage,
		Color:       0x5865F2,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if user != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    username,
			IconURL: user.AvatarURL(""),
		}
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Resolution",
		Value:  resolutionField(job.Request, ratios),
		Inline: true,
	})

	if len(job.Request.Loras) > 0 {
		names := make([]string, 0, len(job.Request.Loras))
		for _, selection := range job.Request.Loras {
			name := selection.File
			if loras != nil {
				name = loras.DisplayName(selection.File)
			}
			names = append(names, fmt.Sprintf("%s (%.2g)", name, selection.Strength))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "LoRAs",
			Value:  strings.Join(names, ", "),
			Inline: true,
		})
	}

	if job.Request.Seed != entities.RandomSeed {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Seed",
			Value:  fmt.Sprintf("`%d`", job.Request.Seed),
			Inline: true,
		})
	}

	if job.Request.EnhancedPrompt != "" && job.Request.EnhancedPrompt != job.Request.Prompt {
		enhanced := job.Request.EnhancedPrompt
		if len(enhanced) > 1000 {
			enhanced = enhanced[:1000] + " ..."
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Enhanced Prompt",
			Value: enhanced,
		})
	}

	var totalSize uint64
	for _, image := range job.Images {
		totalSize += uint64(len(image.Data))
	}
	elapsed := "unknown"
	if !item.Created.IsZero() {
		elapsed = time.Since(item.Created).Round(time.Second).String()
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%d image(s), %s, generated in %s",
			len(job.Images), humanize.Bytes(totalSize), elapsed),
	}

	return embed
}

// resolutionField renders the base resolution, with the upscaled dimensions
// appended when an upscale pass ran.
func resolutionField(request *entities.GenerationRequest, ratios *entities.RatioCatalog) string {
	base := request.Resolution
	if ratios == nil {
		return base
	}
	ratio, ok := ratios.Ratios[request.Resolution]
	if !ok {
		return base
	}
	if request.UpscaleFactor > 1 {
		upscaled, err := ratios.UpscaledResolution(request.Resolution, request.UpscaleFactor)
		if err == nil {
			return fmt.Sprintf("%s → %s (Upscaled %dx)", ratio, upscaled, request.UpscaleFactor)
		}
	}
	return ratio.String()
}

// embedImages attaches the generated images to the webhook: a single file
// per image up to four, a composited grid beyond that.
func embedImages(webhook *discordgo.WebhookEdit, embed *discordgo.MessageEmbed, images []entities.GeneratedImage, compositor composite_renderer.Renderer) error {
	if webhook == nil {
		return errors.New("embedImages called with nil webhook")
	}

	var files []*discordgo.File

	if len(images) > 4 {
		if compositor == nil {
			return errors.New("compositor is required for tiling more than four images")
		}
		tile, err := compositor.TileImages(images)
		if err != nil {
			return fmt.Errorf("error tiling images: %w", err)
		}
		name := fmt.Sprintf("%s.png", time.Now().UTC().Format("2006-01-02_15-04-05"))
		files = append(files, &discordgo.File{Name: name, Reader: tile})
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + name}
	} else {
		for i, image := range images {
			name := image.Filename
			if name == "" {
				name = fmt.Sprintf("image_%d.png", i)
			}
			files = append(files, &discordgo.File{
				Name:        name,
				ContentType: "image/png",
				Reader:      bytes.NewReader(image.Data),
			})
			if i == 0 {
				embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + name}
			}
		}
	}

	webhook.Embeds = &[]*discordgo.MessageEmbed{embed}
	webhook.Files = files

	return nil
}
