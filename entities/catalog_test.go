package entities

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestLoadLoraCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lora.json")
	data := `{
		"default": "anime.safetensors",
		"available_loras": [
			{"name": "Anime", "file": "anime.safetensors", "weight": 1.0, "add_prompt": "anime style"},
			{"name": "Watercolor", "file": "watercolor.safetensors", "weight": 0.8}
		]
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("error writing catalog: %v", err)
	}

	catalog, err := LoadLoraCatalog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if catalog.Default != "anime.safetensors" {
		t.Errorf("default = %q", catalog.Default)
	}
	if catalog.Len() != 2 {
		t.Fatalf("len = %d, want 2", catalog.Len())
	}

	lora := catalog.Get("anime.safetensors")
	if lora == nil || lora.AddPrompt != "anime style" {
		t.Errorf("lora = %+v", lora)
	}
	if catalog.Get("missing.safetensors") != nil {
		t.Errorf("unknown files should resolve to nil")
	}

	if got := catalog.DisplayName("watercolor.safetensors"); got != "Watercolor" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := catalog.DisplayName("removed.safetensors"); got != "removed.safetensors" {
		t.Errorf("DisplayName fallback = %q", got)
	}
}

func TestLoadLoraCatalogMissingFile(t *testing.T) {
	if _, err := LoadLoraCatalog(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRatioCatalogNames(t *testing.T) {
	catalog := DefaultRatioCatalog()

	names := catalog.Names()
	if len(names) != len(catalog.Ratios) {
		t.Fatalf("names = %d, ratios = %d", len(names), len(catalog.Ratios))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("names are not sorted: %v", names)
	}
	for _, name := range names {
		if !catalog.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
	}
}

func TestUpscaledResolution(t *testing.T) {
	catalog := &RatioCatalog{Ratios: map[string]Ratio{
		"square": {Width: 1024, Height: 1024},
	}}

	got, err := catalog.UpscaledResolution("square", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2048x2048" {
		t.Errorf("resolution = %q, want 2048x2048", got)
	}

	if _, err := catalog.UpscaledResolution("portrait", 2); err == nil {
		t.Fatal("expected an error for an unknown ratio")
	}
}
