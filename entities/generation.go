package entities

import (
	"fmt"
	"math/rand"
	"time"
)

// LoraSelection is a single LoRA applied to a generation, referenced by its
// catalog file name with a strength multiplier.
type LoraSelection struct {
	File     string  `json:"file"`
	Strength float64 `json:"strength"`
}

const (
	MinLoraStrength = 0.0
	MaxLoraStrength = 2.0

	MinUpscaleFactor = 1
	MaxUpscaleFactor = 4

	// CreativityOff disables prompt enhancement entirely.
	CreativityOff = 0
	// MinCreativity is a no-op level: the prompt is used verbatim and no
	// enhancement provider is contacted.
	MinCreativity = 1
	MaxCreativity = 10

	// RandomSeed asks the backend client to roll a fresh seed.
	RandomSeed int64 = -1
)

// GenerationRequest is the immutable description of what a user asked for.
// It is built and validated by the command layer before it ever reaches the
// queue; the coordinator and backend client never mutate it.
type GenerationRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`

	Prompt         string `json:"prompt"`
	EnhancedPrompt string `json:"enhanced_prompt,omitempty"`

	Resolution    string          `json:"resolution"`
	Loras         []LoraSelection `json:"loras,omitempty"`
	UpscaleFactor int             `json:"upscale_factor"`
	Creativity    int             `json:"creativity"`
	Seed          int64           `json:"seed"`

	WorkflowFilename string `json:"workflow_filename"`

	CreatedAt time.Time `json:"created_at"`
}

// FullPrompt returns the prompt that should reach the backend: the enhanced
// prompt when enhancement produced one, the original otherwise.
func (r *GenerationRequest) FullPrompt() string {
	if r.EnhancedPrompt != "" {
		return r.EnhancedPrompt
	}
	return r.Prompt
}

func (r *GenerationRequest) Validate(ratios *RatioCatalog, loras *LoraCatalog) error {
	if r.Prompt == "" {
		return &ValidationError{Field: "prompt", Message: "a prompt is required"}
	}
	if ratios != nil && !ratios.Has(r.Resolution) {
		return &ValidationError{
			Field:   "resolution",
			Message: fmt.Sprintf("%q is not an available resolution", r.Resolution),
		}
	}
	for _, lora := range r.Loras {
		if loras != nil && loras.Get(lora.File) == nil {
			return &ValidationError{
				Field:   "lora",
				Message: fmt.Sprintf("unknown lora %q", lora.File),
			}
		}
		if lora.Strength < MinLoraStrength || lora.Strength > MaxLoraStrength {
			return &ValidationError{
				Field: "lora",
				Message: fmt.Sprintf("lora strength %.2f is out of range [%.0f, %.0f]",
					lora.Strength, MinLoraStrength, MaxLoraStrength),
			}
		}
	}
	if r.UpscaleFactor < MinUpscaleFactor || r.UpscaleFactor > MaxUpscaleFactor {
		return &ValidationError{
			Field:   "upscale",
			Message: fmt.Sprintf("upscale factor %d is out of range [%d, %d]", r.UpscaleFactor, MinUpscaleFactor, MaxUpscaleFactor),
		}
	}
	if r.Creativity != CreativityOff && (r.Creativity < MinCreativity || r.Creativity > MaxCreativity) {
		return &ValidationError{
			Field:   "creativity",
			Message: fmt.Sprintf("creativity %d is out of range [%d, %d]", r.Creativity, MinCreativity, MaxCreativity),
		}
	}
	return nil
}

// ValidationError rejects bad user input synchronously, before a job exists.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Enhancement is the result of one prompt-enhancement call. It lives only
// for the duration of the request it belongs to.
type Enhancement struct {
	Original   string
	Enhanced   string
	Creativity int
	Provider   string
}

func GenerateSeed() int64 {
	return rand.Int63()
}
