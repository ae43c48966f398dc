package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flux_comfy_bot/entities"
)

// OpenAIEnhancer talks to any chat-completions compatible endpoint. Pointing
// BaseURL at a local LMStudio server works the same as the hosted API.
type OpenAIEnhancer struct {
	apiKey   string
	model    string
	baseURL  string
	provider string
	client   *http.Client
}

type Options struct {
	// APIKey may be empty for local servers that do not check it.
	APIKey  string
	Model   string
	BaseURL string
	// Provider is a display name for embeds and logs, e.g. "openai" or
	// "lmstudio".
	Provider   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

const defaultTimeout = 30 * time.Second

func NewOpenAIEnhancer(opts Options) (*OpenAIEnhancer, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		return nil, errors.New("missing model")
	}
	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIEnhancer{
		apiKey:   strings.TrimSpace(opts.APIKey),
		model:    opts.Model,
		baseURL:  baseURL,
		provider: provider,
		client:   client,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIEnhancer) Enhance(ctx context.Context, prompt string, creativity int) (*entities.Enhancement, error) {
	// the minimum level passes the prompt through untouched, without ever
	// contacting the provider
	if creativity <= entities.MinCreativity {
		return &entities.Enhancement{
			Original:   prompt,
			Enhanced:   prompt,
			Creativity: creativity,
			Provider:   "none",
		}, nil
	}
	if creativity > entities.MaxCreativity {
		creativity = entities.MaxCreativity
	}

	payload := chatRequest{
		Model:       o.model,
		Temperature: temperature(creativity),
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("%s\n\nPrompt: %s", instructions[creativity], prompt)},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("error encoding enhancement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error contacting %s: %w", o.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned status %d", o.provider, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding %s response: %w", o.provider, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", o.provider)
	}

	enhanced := strings.TrimSpace(strings.Trim(strings.TrimSpace(out.Choices[0].Message.Content), `"`))
	if enhanced == "" {
		return nil, fmt.Errorf("%s returned an empty prompt", o.provider)
	}

	return &entities.Enhancement{
		Original:   prompt,
		Enhanced:   enhanced,
		Creativity: creativity,
		Provider:   o.provider,
	}, nil
}

// temperature scales with creativity, from conservative edits at level 2 to
// free association at level 10.
func temperature(creativity int) float64 {
	return 0.4 + 0.1*float64(creativity-2)
}

var _ Enhancer = (*OpenAIEnhancer)(nil)
