package comfyui

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flux_comfy_bot/entities"
)

// Node IDs the bundled Flux workflows share. The workflow JSON is in
// ComfyUI's API format: a map of node ID to node.
const (
	promptNodeID  = "69"    // positive prompt text
	ratioNodeID   = "258"   // ratio_selected resolution picker
	loraNodeID    = "271"   // Power Lora Loader
	upscaleNodeID = "264"   // scale_by upscale factor
	seedNodeID    = "198:2" // noise_seed
)

type WorkflowNode struct {
	Inputs    map[string]interface{} `json:"inputs"`
	ClassType string                 `json:"class_type,omitempty"`
	Meta      json.RawMessage        `json:"_meta,omitempty"`
}

type Workflow map[string]*WorkflowNode

func LoadWorkflow(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading workflow %s: %w", path, err)
	}
	var workflow Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("error parsing workflow %s: %w", path, err)
	}
	return workflow, nil
}

// Clone deep-copies the workflow so a request can be applied without
// mutating the template loaded at startup.
func (w Workflow) Clone() Workflow {
	out := make(Workflow, len(w))
	for id, node := range w {
		inputs := make(map[string]interface{}, len(node.Inputs))
		for k, v := range node.Inputs {
			inputs[k] = v
		}
		out[id] = &WorkflowNode{Inputs: inputs, ClassType: node.ClassType, Meta: node.Meta}
	}
	return out
}

func (w Workflow) node(id string) (*WorkflowNode, error) {
	node, ok := w[id]
	if !ok || node.Inputs == nil {
		return nil, fmt.Errorf("workflow is missing node %s", id)
	}
	return node, nil
}

// Apply fills the workflow's parameter nodes from a validated request.
// Errors here mean the workflow template does not match the request and are
// not retryable.
func (w Workflow) Apply(req *entities.GenerationRequest, catalog *entities.LoraCatalog) error {
	prompt := req.FullPrompt()

	loraNode, err := w.node(loraNodeID)
	if err != nil {
		if len(req.Loras) > 0 {
			return err
		}
	} else {
		// drop whatever loras the template shipped with before applying ours
		for key := range loraNode.Inputs {
			if strings.HasPrefix(key, "lora_") {
				delete(loraNode.Inputs, key)
			}
		}
		for i, selection := range req.Loras {
			loraNode.Inputs[fmt.Sprintf("lora_%d", i+1)] = map[string]interface{}{
				"on":       true,
				"lora":     selection.File,
				"strength": selection.Strength,
			}
			if catalog != nil {
				if lora := catalog.Get(selection.File); lora != nil && lora.AddPrompt != "" {
					prompt += ", " + lora.AddPrompt
				}
			}
		}
	}

	promptNode, err := w.node(promptNodeID)
	if err != nil {
		return err
	}
	promptNode.Inputs["prompt"] = prompt

	ratioNode, err := w.node(ratioNodeID)
	if err != nil {
		return err
	}
	ratioNode.Inputs["ratio_selected"] = req.Resolution

	if req.UpscaleFactor > 1 {
		upscaleNode, err := w.node(upscaleNodeID)
		if err != nil {
			return err
		}
		upscaleNode.Inputs["scale_by"] = req.UpscaleFactor
	}

	seedNode, err := w.node(seedNodeID)
	if err != nil {
		return err
	}
	seed := req.Seed
	if seed == entities.RandomSeed {
		seed = entities.GenerateSeed()
	}
	seedNode.Inputs["noise_seed"] = seed

	return nil
}

// Seed reads back the noise seed, after Apply may have rolled a random one.
func (w Workflow) Seed() int64 {
	node, ok := w[seedNodeID]
	if !ok {
		return entities.RandomSeed
	}
	switch v := node.Inputs["noise_seed"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return entities.RandomSeed
	}
}
