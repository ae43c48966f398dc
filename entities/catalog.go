package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Lora is one entry of the lora.json catalog: a style adapter the user can
// stack onto a generation.
type Lora struct {
	Name      string  `json:"name"`
	File      string  `json:"file"`
	Weight    float64 `json:"weight"`
	AddPrompt string  `json:"add_prompt,omitempty"`
	URL       string  `json:"url,omitempty"`
}

type LoraCatalog struct {
	Default        string `json:"default,omitempty"`
	AvailableLoras []Lora `json:"available_loras"`
}

func LoadLoraCatalog(path string) (*LoraCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading lora catalog: %w", err)
	}
	var catalog LoraCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("error parsing lora catalog: %w", err)
	}
	return &catalog, nil
}

func (c *LoraCatalog) Get(file string) *Lora {
	for i := range c.AvailableLoras {
		if c.AvailableLoras[i].File == file {
			return &c.AvailableLoras[i]
		}
	}
	return nil
}

// DisplayName resolves a lora file name to its catalog name, falling back
// to the file name for loras that were removed from the catalog.
func (c *LoraCatalog) DisplayName(file string) string {
	if lora := c.Get(file); lora != nil {
		return lora.Name
	}
	return file
}

// Len and String implement fuzzy.Source for autocomplete matching.
func (c *LoraCatalog) Len() int            { return len(c.AvailableLoras) }
func (c *LoraCatalog) String(i int) string { return c.AvailableLoras[i].Name }

// Ratio is a base resolution the workflow's ratio node understands.
type Ratio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Ratio) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

type RatioCatalog struct {
	Ratios map[string]Ratio `json:"ratios"`
}

func LoadRatioCatalog(path string) (*RatioCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading ratio catalog: %w", err)
	}
	var catalog RatioCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("error parsing ratio catalog: %w", err)
	}
	return &catalog, nil
}

func (c *RatioCatalog) Has(name string) bool {
	_, ok := c.Ratios[name]
	return ok
}

// Names returns the ratio names in a stable order for command choices.
func (c *RatioCatalog) Names() []string {
	names := make([]string, 0, len(c.Ratios))
	for name := range c.Ratios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpscaledResolution returns "WxH" for a ratio scaled by factor, matching
// what the upscale node will produce.
func (c *RatioCatalog) UpscaledResolution(name string, factor int) (string, error) {
	base, ok := c.Ratios[name]
	if !ok {
		return "", fmt.Errorf("resolution %q not found in ratio catalog", name)
	}
	return fmt.Sprintf("%dx%d", base.Width*factor, base.Height*factor), nil
}

// DefaultRatioCatalog mirrors the ratio node options of the bundled
// workflows, used when no ratios.json is present next to the binary.
func DefaultRatioCatalog() *RatioCatalog {
	return &RatioCatalog{Ratios: map[string]Ratio{
		"1:1 [1024x1024 square]":        {Width: 1024, Height: 1024},
		"2:3 [832x1216 portrait]":       {Width: 832, Height: 1216},
		"3:4 [896x1152 portrait]":       {Width: 896, Height: 1152},
		"5:8 [768x1216 portrait]":       {Width: 768, Height: 1216},
		"9:16 [768x1344 portrait]":      {Width: 768, Height: 1344},
		"3:2 [1216x832 landscape]":      {Width: 1216, Height: 832},
		"4:3 [1152x896 landscape]":      {Width: 1152, Height: 896},
		"8:5 [1216x768 landscape]":      {Width: 1216, Height: 768},
		"16:9 [1344x768 landscape]":     {Width: 1344, Height: 768},
		"21:9 [1536x640 ultrawide]":     {Width: 1536, Height: 640},
		"9:21 [640x1536 tall portrait]": {Width: 640, Height: 1536},
	}}
}
