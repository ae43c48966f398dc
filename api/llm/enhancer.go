package llm

import (
	"context"

	"flux_comfy_bot/entities"
)

// Enhancer rewrites a user prompt into a more detailed one before it is
// handed to the image backend. Enhancement is best-effort: callers fall back
// to the original prompt when it fails.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string, creativity int) (*entities.Enhancement, error)
}

// instructions maps each creativity level above the no-op minimum to how far
// the model may stray from the user's wording.
var instructions = map[int]string{
	2:  "Make minimal adjustments. Fix obvious grammar issues and keep the prompt essentially as written.",
	3:  "Lightly polish the prompt. Add a few clarifying descriptive words without changing the subject.",
	4:  "Add modest visual detail: lighting, mood, or composition hints that fit the described scene.",
	5:  "Expand the prompt with concrete visual details while keeping the original subject and intent intact.",
	6:  "Enrich the prompt noticeably. Introduce style, atmosphere, and framing that complement the subject.",
	7:  "Rewrite the prompt with strong artistic direction: camera, palette, and texture details are welcome.",
	8:  "Reimagine the scene with substantial creative additions while the core subject stays recognizable.",
	9:  "Take significant creative liberties. The subject should remain, but everything else is yours to shape.",
	10: "Maximum creativity. Use the prompt only as loose inspiration for a vivid, fully realized scene.",
}

const systemPrompt = "You enhance prompts for an image generation model. " +
	"Respond with the enhanced prompt only: no preamble, no quotes, no explanations."
