package setup

// ModelFile describes a model artifact the bot needs on the ComfyUI side,
// either a required base model or a selectable FLUX checkpoint.
type ModelFile struct {
	Name     string
	Filename string
	// Path is the directory under the ComfyUI models dir, e.g. "/vae".
	Path   string
	Source Source

	// huggingface source
	RepoID string
	File   string

	// civitai source
	ModelID   string
	VersionID string

	// Workflow is the workflow JSON tuned for this checkpoint. Only set for
	// checkpoints.
	Workflow string
}

type Source string

const (
	SourceHuggingFace Source = "huggingface"
	SourceCivitAI     Source = "civitai"
)

// BaseModels are downloaded unconditionally when missing.
var BaseModels = []ModelFile{
	{
		Name:     "VAE Model",
		Filename: "ae.safetensors",
		Path:     "/vae",
		RepoID:   "black-forest-labs/FLUX.1-dev",
		File:     "ae.safetensors",
		Source:   SourceHuggingFace,
	},
	{
		Name:     "CLIP_L",
		Filename: "clip_l.safetensors",
		Path:     "/clip",
		RepoID:   "comfyanonymous/flux_text_encoders",
		File:     "clip_l.safetensors",
		Source:   SourceHuggingFace,
	},
	{
		Name:     "T5XXL_FP16",
		Filename: "t5xxl_fp16.safetensors",
		Path:     "/clip",
		RepoID:   "comfyanonymous/flux_text_encoders",
		File:     "t5xxl_fp16.safetensors",
		Source:   SourceHuggingFace,
	},
	{
		Name:     "T5XXL_FP8",
		Filename: "t5xxl_fp8_e4m3fn.safetensors",
		Path:     "/clip",
		RepoID:   "comfyanonymous/flux_text_encoders",
		File:     "t5xxl_fp8_e4m3fn.safetensors",
		Source:   SourceHuggingFace,
	},
}

// Checkpoints are the FLUX checkpoints the user picks one of. Each carries
// the workflow JSON tuned for its VRAM budget.
var Checkpoints = []ModelFile{
	{
		Name:      "FLUXFusion 6GB",
		Filename:  "fluxFusionV24StepsGGUFNF4_V2GGUFQ3KM.gguf",
		Path:      "/unet",
		ModelID:   "630820",
		VersionID: "944957",
		Workflow:  "fluxfusion6GB4step.json",
		Source:    SourceCivitAI,
	},
	{
		Name:      "FLUXFusion 8GB",
		Filename:  "fluxFusionV24StepsGGUFNF4_V2GGUFQ50.gguf",
		Path:      "/unet",
		ModelID:   "630820",
		VersionID: "944799",
		Workflow:  "fluxfusion8GB4step.json",
		Source:    SourceCivitAI,
	},
	{
		Name:      "FLUXFusion 10GB",
		Filename:  "fluxFusionV24StepsGGUFNF4_V2GGUFQ6K.gguf",
		Path:      "/unet",
		ModelID:   "630820",
		VersionID: "944704",
		Workflow:  "fluxfusion10GB4step.json",
		Source:    SourceCivitAI,
	},
	{
		Name:      "FLUXFusion 12GB",
		Filename:  "fluxFusionV24StepsGGUFNF4_V2GGUFQ80.gguf",
		Path:      "/unet",
		ModelID:   "630820",
		VersionID: "936976",
		Workflow:  "fluxfusion12GB4step.json",
		Source:    SourceCivitAI,
	},
	{
		Name:      "FLUXFusion 24GB",
		Filename:  "fluxFusionV24StepsGGUFNF4_V2Fp16.safetensors",
		Path:      "/checkpoints",
		ModelID:   "630820",
		VersionID: "936309",
		Workflow:  "fluxfusion24GB4step.json",
		Source:    SourceCivitAI,
	},
	{
		Name:     "FLUX.1 Dev",
		Filename: "flux1-dev.safetensors",
		Path:     "/checkpoints",
		RepoID:   "black-forest-labs/FLUX.1-dev",
		File:     "flux1-dev.safetensors",
		Workflow: "FluxDev24GB.json",
		Source:   SourceHuggingFace,
	},
}
