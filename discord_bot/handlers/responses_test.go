package handlers

import (
	"bytes"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestContentEdit(t *testing.T) {
	edit := &discordgo.WebhookEdit{}
	embed := &discordgo.MessageEmbed{Title: "result"}
	file := &discordgo.File{Name: "image.png", Reader: bytes.NewReader([]byte("png"))}

	contentEdit(edit, "first line", "second line", embed, file)

	if edit.Content == nil || *edit.Content != "first line\nsecond line" {
		t.Errorf("content = %v", edit.Content)
	}
	if edit.Embeds == nil || len(*edit.Embeds) != 1 || (*edit.Embeds)[0].Title != "result" {
		t.Errorf("embeds = %v", edit.Embeds)
	}
	if len(edit.Files) != 1 || edit.Files[0].Name != "image.png" {
		t.Errorf("files = %v", edit.Files)
	}
}

// followups are sent as WebhookParams, the edit fields must carry over
// with the ephemeral flag intact.
func TestWebhookParamsEphemeral(t *testing.T) {
	edit := webhookFromContents()
	contentEdit(edit, "only you can see this", Components[DeleteButton])

	params := webhookParams(edit, discordgo.MessageFlagsEphemeral)

	if params.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("flags = %d, want ephemeral", params.Flags)
	}
	if params.Content != "only you can see this" {
		t.Errorf("content = %q", params.Content)
	}
	if len(params.Components) != 1 {
		t.Errorf("components = %d, want 1", len(params.Components))
	}
}
