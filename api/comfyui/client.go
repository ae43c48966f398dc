package comfyui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"flux_comfy_bot/entities"
)

type apiClient struct {
	host     string
	clientID string
	client   *http.Client

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type Config struct {
	// Host is the server address without scheme, e.g. "127.0.0.1:8188".
	Host string

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func New(cfg Config) (Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("missing host")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	return &apiClient{
		host:     strings.TrimSuffix(strings.TrimPrefix(cfg.Host, "http://"), "/"),
		clientID: uuid.New().String(),
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
	}, nil
}

func (api *apiClient) Host() string { return api.host }

// backoff returns the delay before retry n, doubling each attempt up to the
// configured ceiling.
func (api *apiClient) backoff(retries int) time.Duration {
	delay := api.baseDelay << retries
	if delay > api.maxDelay || delay <= 0 {
		delay = api.maxDelay
	}
	return delay
}

type promptRequest struct {
	Prompt   Workflow `json:"prompt"`
	ClientID string   `json:"client_id"`
}

type promptResponse struct {
	PromptID string `json:"prompt_id"`
}

type promptErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (api *apiClient) QueuePrompt(ctx context.Context, workflow Workflow) (string, error) {
	payload, err := json.Marshal(promptRequest{Prompt: workflow, ClientID: api.clientID})
	if err != nil {
		return "", fmt.Errorf("error marshalling prompt: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= api.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(api.backoff(attempt - 1)):
			}
		}

		promptID, err := api.postPrompt(ctx, payload)
		if err == nil {
			return promptID, nil
		}
		if !Transient(err) {
			return "", err
		}
		log.Printf("ComfyUI submit attempt %d/%d failed: %v", attempt+1, api.maxRetries+1, err)
		lastErr = err
	}

	return "", lastErr
}

func (api *apiClient) postPrompt(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/prompt", api.host), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: server returned %d", ErrBackendUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		rejection := &RejectionError{StatusCode: resp.StatusCode}
		var perror promptErrorResponse
		if err := json.Unmarshal(body, &perror); err == nil {
			rejection.Kind = perror.Error.Type
			rejection.Message = perror.Error.Message
		}
		return "", rejection
	}

	var result promptResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing prompt response: %w", err)
	}
	if result.PromptID == "" {
		return "", errors.New("prompt response missing prompt_id")
	}

	return result.PromptID, nil
}

func (api *apiClient) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := url.URL{Scheme: "ws", Host: api.host, Path: "/ws",
		RawQuery: url.Values{"clientId": {api.clientID}}.Encode()}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return conn, nil
}

func (api *apiClient) Watch(ctx context.Context, promptID string) (<-chan entities.ProgressEvent, error) {
	conn, err := api.dial(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan entities.ProgressEvent)
	go api.watch(ctx, conn, promptID, events)

	return events, nil
}

func (api *apiClient) watch(ctx context.Context, conn *websocket.Conn, promptID string, events chan<- entities.ProgressEvent) {
	defer close(events)
	// conn is nil after a failed redial
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	emit := func(event entities.ProgressEvent) bool {
		event.PromptID = promptID
		event.Fraction = clamp(event.Fraction)
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var lastFraction float64
	retries := 0
	for {
		if ctx.Err() != nil {
			emitErr(ctx, events, promptID, ctx.Err())
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			// the stream dropped mid-run, reconnect with backoff
			if retries >= api.maxRetries {
				emitErr(ctx, events, promptID, fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
				return
			}
			select {
			case <-ctx.Done():
				emitErr(ctx, events, promptID, ctx.Err())
				return
			case <-time.After(api.backoff(retries)):
			}
			retries++
			conn.Close()
			conn, err = api.dial(ctx)
			if err != nil {
				emitErr(ctx, events, promptID, err)
				return
			}
			continue
		}
		retries = 0

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			// binary preview frames and malformed messages are skipped
			continue
		}

		switch msg := message.Data.(type) {
		case *ExecutionStartData:
			if msg.PromptID != promptID {
				continue
			}
			if !emit(entities.ProgressEvent{Phase: entities.PhaseStarting, Message: "Starting execution"}) {
				return
			}
		case *ExecutionCachedData:
			if msg.PromptID != promptID {
				continue
			}
			if !emit(entities.ProgressEvent{Phase: entities.PhaseCached, Message: "Reusing cached nodes", Fraction: lastFraction}) {
				return
			}
		case *ProgressData:
			if msg.PromptID != "" && msg.PromptID != promptID {
				continue
			}
			if msg.Max <= 0 {
				continue
			}
			lastFraction = clamp(float64(msg.Value) / float64(msg.Max))
			if !emit(entities.ProgressEvent{Phase: entities.PhaseGenerating, Fraction: lastFraction}) {
				return
			}
		case *ExecutedData:
			if msg.PromptID != promptID {
				continue
			}
			if !emit(entities.ProgressEvent{Phase: entities.PhaseFinalizing, Message: "Saving outputs", Fraction: 1}) {
				return
			}
		case *ExecutingData:
			if msg.PromptID != promptID {
				continue
			}
			if msg.Node == nil {
				// node == null is the server's end-of-prompt marker
				emit(entities.ProgressEvent{Phase: entities.PhaseComplete, Fraction: 1})
				return
			}
		case *ExecutionInterruptedData:
			if msg.PromptID != promptID {
				continue
			}
			emitErr(ctx, events, promptID, ErrInterrupted)
			return
		case *ExecutionErrorData:
			if msg.PromptID != promptID {
				continue
			}
			emitErr(ctx, events, promptID, fmt.Errorf("%s: %s", msg.NodeType, msg.ExceptionMessage))
			return
		}
	}
}

func emitErr(ctx context.Context, events chan<- entities.ProgressEvent, promptID string, err error) {
	select {
	case events <- entities.ProgressEvent{
		PromptID: promptID,
		Phase:    entities.PhaseError,
		Message:  err.Error(),
		Err:      err,
	}:
	case <-ctx.Done():
	}
}

func clamp(fraction float64) float64 {
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}

type historyOutputs struct {
	Outputs map[string]struct {
		Images []ImageOutput `json:"images"`
	} `json:"outputs"`
}

func (api *apiClient) Outputs(ctx context.Context, promptID string) ([]entities.GeneratedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s/history/%s", api.host, promptID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	history := make(map[string]historyOutputs)
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("error parsing history: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, fmt.Errorf("prompt %s not found in history", promptID)
	}

	var images []entities.GeneratedImage
	for _, output := range entry.Outputs {
		for _, image := range output.Images {
			// preview saves from intermediate nodes are not results
			if strings.HasPrefix(image.Filename, "ComfyUI_temp") || image.Type == "temp" {
				continue
			}
			data, err := api.view(ctx, image)
			if err != nil {
				return nil, err
			}
			images = append(images, entities.GeneratedImage{Filename: image.Filename, Data: data})
		}
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("prompt %s produced no output images", promptID)
	}

	return images, nil
}

func (api *apiClient) view(ctx context.Context, image ImageOutput) ([]byte, error) {
	params := url.Values{}
	params.Add("filename", image.Filename)
	params.Add("subfolder", image.Subfolder)
	params.Add("type", image.Type)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s/view?%s", api.host, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error downloading %s: status %d", image.Filename, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (api *apiClient) Interrupt(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/interrupt", api.host), strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return nil
}

func (api *apiClient) SystemStats(ctx context.Context) (*SystemStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s/system_stats", api.host), nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	stats := &SystemStats{}
	if err := json.Unmarshal(body, stats); err != nil {
		return nil, err
	}

	return stats, nil
}
