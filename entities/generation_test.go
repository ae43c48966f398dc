package entities

import (
	"errors"
	"testing"
)

func validRequest() *GenerationRequest {
	return &GenerationRequest{
		Prompt:        "a red fox",
		Resolution:    "square",
		UpscaleFactor: 1,
		Creativity:    CreativityOff,
		Seed:          RandomSeed,
	}
}

func testCatalogs() (*RatioCatalog, *LoraCatalog) {
	ratios := &RatioCatalog{Ratios: map[string]Ratio{"square": {Width: 1024, Height: 1024}}}
	loras := &LoraCatalog{AvailableLoras: []Lora{{Name: "Anime", File: "anime.safetensors"}}}
	return ratios, loras
}

func TestValidate(t *testing.T) {
	ratios, loras := testCatalogs()

	cases := []struct {
		name   string
		mutate func(*GenerationRequest)
		field  string
	}{
		{"valid", func(r *GenerationRequest) {}, ""},
		{"valid with lora", func(r *GenerationRequest) {
			r.Loras = []LoraSelection{{File: "anime.safetensors", Strength: 1.2}}
		}, ""},
		{"empty prompt", func(r *GenerationRequest) { r.Prompt = "" }, "prompt"},
		{"unknown resolution", func(r *GenerationRequest) { r.Resolution = "cinemascope" }, "resolution"},
		{"unknown lora", func(r *GenerationRequest) {
			r.Loras = []LoraSelection{{File: "nope.safetensors", Strength: 1}}
		}, "lora"},
		{"lora strength too high", func(r *GenerationRequest) {
			r.Loras = []LoraSelection{{File: "anime.safetensors", Strength: 2.5}}
		}, "lora"},
		{"lora strength negative", func(r *GenerationRequest) {
			r.Loras = []LoraSelection{{File: "anime.safetensors", Strength: -0.1}}
		}, "lora"},
		{"upscale too high", func(r *GenerationRequest) { r.UpscaleFactor = 5 }, "upscale"},
		{"upscale zero", func(r *GenerationRequest) { r.UpscaleFactor = 0 }, "upscale"},
		{"creativity too high", func(r *GenerationRequest) { r.Creativity = 11 }, "creativity"},
		{"creativity negative", func(r *GenerationRequest) { r.Creativity = -1 }, "creativity"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			request := validRequest()
			tt.mutate(request)

			err := request.Validate(ratios, loras)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected a ValidationError, got %v", err)
			}
			if validation.Field != tt.field {
				t.Errorf("field = %q, want %q", validation.Field, tt.field)
			}
		})
	}
}

func TestValidateCreativityOff(t *testing.T) {
	ratios, loras := testCatalogs()

	request := validRequest()
	request.Creativity = CreativityOff
	if err := request.Validate(ratios, loras); err != nil {
		t.Fatalf("creativity off must validate: %v", err)
	}
}

func TestFullPrompt(t *testing.T) {
	request := validRequest()
	if got := request.FullPrompt(); got != "a red fox" {
		t.Errorf("FullPrompt = %q", got)
	}

	request.EnhancedPrompt = "a vivid red fox"
	if got := request.FullPrompt(); got != "a vivid red fox" {
		t.Errorf("FullPrompt = %q, want the enhanced prompt", got)
	}
}
