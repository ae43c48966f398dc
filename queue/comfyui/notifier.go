package comfyui

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"flux_comfy_bot/discord_bot/handlers"
	"flux_comfy_bot/entities"
)

// Notifier receives job lifecycle updates. The queue is wired to Discord
// through discordNotifier; tests substitute their own.
type Notifier interface {
	Progress(item *ComfyQueueItem, job *entities.Job)
	Succeeded(item *ComfyQueueItem, job *entities.Job)
	Failed(item *ComfyQueueItem, job *entities.Job)
	Cancelled(item *ComfyQueueItem, job *entities.Job)
}

type discordNotifier struct {
	q *ComfyQueue
}

func (n *discordNotifier) Progress(item *ComfyQueueItem, job *entities.Job) {
	content := fmt.Sprintf("%s\n%s <@%s>",
		progressBar(job.Progress),
		statusLine(job),
		item.Request.UserID,
	)

	_, err := handlers.EditInteractionResponse(n.q.botSession, item.DiscordInteraction,
		content, handlers.Components[handlers.Interrupt])
	if err != nil {
		log.Printf("Error updating progress for %s: %v", job.ID, err)
	}
}

func (n *discordNotifier) Succeeded(item *ComfyQueueItem, job *entities.Job) {
	webhook := &discordgo.WebhookEdit{}

	embed := resultEmbed(item, job, n.q.loras, n.q.ratios)

	if err := embedImages(webhook, embed, job.Images, n.q.compositor); err != nil {
		log.Printf("Error attaching images for %s: %v", job.ID, err)
		// the result edit still goes out, tell the user why it has no images
		if err := handlers.ErrorFollowup(n.q.botSession, item.DiscordInteraction, "Error attaching the generated images.", err); err != nil {
			log.Printf("Error sending followup for %s: %v", job.ID, err)
		}
	}

	webhook.Components = &[]discordgo.MessageComponent{handlers.Components[handlers.RerollButton]}

	content := fmt.Sprintf("<@%s>", item.Request.UserID)
	webhook.Content = &content

	if _, err := handlers.EditInteractionResponse(n.q.botSession, item.DiscordInteraction, webhook); err != nil {
		// the interaction token lasts 15 minutes; long queues outlive it,
		// so fall back to a plain channel message
		log.Printf("Error editing response for %s, falling back to channel message: %v", job.ID, err)
		n.fallback(item, webhook)
	}
}

func (n *discordNotifier) Failed(item *ComfyQueueItem, job *entities.Job) {
	message := job.Error
	if message == "" {
		message = "generation failed"
	}
	if err := handlers.ErrorEdit(n.q.botSession, item.DiscordInteraction, message); err != nil {
		n.fallbackText(item, fmt.Sprintf("<@%s> Your generation failed: %s", item.Request.UserID, message))
	}
}

func (n *discordNotifier) Cancelled(item *ComfyQueueItem, job *entities.Job) {
	content := fmt.Sprintf("Generation cancelled for <@%s>", item.Request.UserID)
	components := []discordgo.MessageComponent{handlers.Components[handlers.DeleteButton]}
	if _, err := handlers.EditInteractionResponse(n.q.botSession, item.DiscordInteraction, content, components); err != nil {
		n.fallbackText(item, content)
	}
}

func (n *discordNotifier) fallback(item *ComfyQueueItem, webhook *discordgo.WebhookEdit) {
	send := &discordgo.MessageSend{Files: webhook.Files}
	if webhook.Content != nil {
		send.Content = *webhook.Content
	}
	if webhook.Embeds != nil {
		send.Embeds = *webhook.Embeds
	}
	if _, err := n.q.botSession.ChannelMessageSendComplex(item.Request.ChannelID, send); err != nil {
		log.Printf("Error sending fallback message to channel %s: %v", item.Request.ChannelID, err)
	}
}

func (n *discordNotifier) fallbackText(item *ComfyQueueItem, content string) {
	if _, err := n.q.botSession.ChannelMessageSend(item.Request.ChannelID, content); err != nil {
		log.Printf("Error sending fallback message to channel %s: %v", item.Request.ChannelID, err)
	}
}

const progressBarLength = 20

func progressBar(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * progressBarLength)

	var bar strings.Builder
	bar.WriteString("`[")
	bar.WriteString(strings.Repeat("▓", filled))
	bar.WriteString(strings.Repeat("░", progressBarLength-filled))
	bar.WriteString(fmt.Sprintf("]` %3.0f%%", fraction*100))
	return bar.String()
}

func statusLine(job *entities.Job) string {
	switch job.Status {
	case entities.JobQueued:
		return "Waiting in queue for"
	case entities.JobSubmitted:
		return "Submitted to the backend for"
	case entities.JobRunning:
		return "Generating for"
	default:
		return "Working for"
	}
}
