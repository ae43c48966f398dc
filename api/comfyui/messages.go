package comfyui

import (
	"encoding/json"
)

// Message is one websocket frame from the ComfyUI event stream. Data is
// decoded into the concrete type matching the "type" field.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	// unmarshal into an equivalent anonymous type to avoid recursion
	var temp struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}

	m.Type = temp.Type

	switch m.Type {
	case "status":
		m.Data = &StatusData{}
	case "execution_start":
		m.Data = &ExecutionStartData{}
	case "execution_cached":
		m.Data = &ExecutionCachedData{}
	case "executing":
		m.Data = &ExecutingData{}
	case "progress":
		m.Data = &ProgressData{}
	case "executed":
		m.Data = &ExecutedData{}
	case "execution_interrupted":
		m.Data = &ExecutionInterruptedData{}
	case "execution_error":
		m.Data = &ExecutionErrorData{}
	default:
		// unknown message types are skipped by the reader
		m.Data = nil
	}

	if m.Data != nil && len(temp.Data) > 0 {
		if err := json.Unmarshal(temp.Data, m.Data); err != nil {
			return err
		}
	}

	return nil
}

type StatusData struct {
	Status struct {
		ExecInfo struct {
			QueueRemaining int `json:"queue_remaining"`
		} `json:"exec_info"`
	} `json:"status"`
}

/*
{"type": "status", "data": {"status": {"exec_info": {"queue_remaining": 1}}}}
*/

type ExecutionStartData struct {
	PromptID string `json:"prompt_id"`
}

type ExecutionCachedData struct {
	Nodes    []interface{} `json:"nodes"`
	PromptID string        `json:"prompt_id"`
}

// ExecutingData carries the node currently running. Node is nil on the
// final frame of a prompt, which is how ComfyUI signals completion.
// The node ID stays a string: API-format workflows use IDs like "198:2".
type ExecutingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

/*
{"type": "executing", "data": {"node": null, "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
*/

type ProgressData struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id,omitempty"`
	Node     string `json:"node,omitempty"`
}

// ImageOutput is one file reference in an "executed" frame or a history
// entry, addressable through the /view endpoint.
type ImageOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type ExecutedData struct {
	Node     string `json:"node"`
	PromptID string `json:"prompt_id"`
	Output   struct {
		Images []ImageOutput `json:"images"`
	} `json:"output"`
}

/*
{"type": "executed", "data": {"node": "19", "output": {"images": [{"filename": "ComfyUI_00046_.png", "subfolder": "", "type": "output"}]}, "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
*/

type ExecutionInterruptedData struct {
	PromptID string   `json:"prompt_id"`
	Node     string   `json:"node_id"`
	NodeType string   `json:"node_type"`
	Executed []string `json:"executed"`
}

type ExecutionErrorData struct {
	PromptID         string   `json:"prompt_id"`
	Node             string   `json:"node_id"`
	NodeType         string   `json:"node_type"`
	Executed         []string `json:"executed"`
	ExceptionMessage string   `json:"exception_message"`
	ExceptionType    string   `json:"exception_type"`
	Traceback        []string `json:"traceback"`
}
