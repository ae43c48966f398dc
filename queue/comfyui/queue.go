package comfyui

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"flux_comfy_bot/api/comfyui"
	"flux_comfy_bot/api/llm"
	"flux_comfy_bot/composite_renderer"
	"flux_comfy_bot/entities"
	"flux_comfy_bot/queue"
	"flux_comfy_bot/repositories/history"
)

type ComfyQueue struct {
	botSession *discordgo.Session

	client      comfyui.Client
	enhancer    llm.Enhancer
	historyRepo history.Repository
	compositor  composite_renderer.Renderer
	notifier    Notifier

	loras  *entities.LoraCatalog
	ratios *entities.RatioCatalog

	commandName       string
	workflowFilename  string
	defaultResolution string
	maxConcurrent     int
	timeout           time.Duration

	queue     chan *ComfyQueueItem
	active    map[string]*ComfyQueueItem
	jobs      *jobTable
	cancelled map[string]bool
	// interactions maps an interaction ID to the request it queued, for
	// components pressed on the response message later.
	interactions map[string]string
	mu           sync.Mutex
	wg           sync.WaitGroup

	stop chan os.Signal
}

type Config struct {
	Client      comfyui.Client
	Enhancer    llm.Enhancer
	HistoryRepo history.Repository
	Notifier    Notifier

	LoraCatalog  *entities.LoraCatalog
	RatioCatalog *entities.RatioCatalog

	// CommandName is the slash command users invoke, e.g. "flux".
	CommandName      string
	WorkflowFilename string

	// MaxConcurrent bounds how many prompts run on the backend at once.
	MaxConcurrent int
	// Timeout aborts a generation that produced no terminal event in time.
	Timeout time.Duration
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration
}

const (
	defaultTimeout     = 5 * time.Minute
	defaultCommandName = "flux"
)

func New(cfg Config) (queue.Queue[*ComfyQueueItem], error) {
	if cfg.Client == nil {
		return nil, errors.New("missing ComfyUI client")
	}
	if cfg.WorkflowFilename == "" {
		return nil, errors.New("missing workflow filename")
	}
	if cfg.RatioCatalog == nil || len(cfg.RatioCatalog.Ratios) == 0 {
		return nil, errors.New("missing ratio catalog")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CommandName == "" {
		cfg.CommandName = defaultCommandName
	}

	q := &ComfyQueue{
		client:      cfg.Client,
		enhancer:    cfg.Enhancer,
		historyRepo: cfg.HistoryRepo,
		compositor:  composite_renderer.Compositor(),
		notifier:    cfg.Notifier,

		loras:  cfg.LoraCatalog,
		ratios: cfg.RatioCatalog,

		commandName:       cfg.CommandName,
		workflowFilename:  cfg.WorkflowFilename,
		defaultResolution: cfg.RatioCatalog.Names()[0],
		maxConcurrent:     cfg.MaxConcurrent,
		timeout:           cfg.Timeout,

		queue:        make(chan *ComfyQueueItem, 100),
		active:       make(map[string]*ComfyQueueItem),
		jobs:         newJobTable(cfg.Retention),
		cancelled:    make(map[string]bool),
		interactions: make(map[string]string),
		stop:         make(chan os.Signal, 1),
	}
	if q.notifier == nil {
		q.notifier = &discordNotifier{q: q}
	}

	return q, nil
}

func (q *ComfyQueue) Commands() []*discordgo.ApplicationCommand { return q.commands() }

func (q *ComfyQueue) Handlers() queue.CommandHandlers { return q.handlers() }

func (q *ComfyQueue) Components() queue.Components { return q.components() }

// Add enqueues a validated item and returns its position in line.
func (q *ComfyQueue) Add(item *ComfyQueueItem) (int, error) {
	if len(q.queue) == cap(q.queue) {
		return -1, errors.New("queue is full")
	}

	q.jobs.Create(item.Request)
	if item.DiscordInteraction != nil {
		q.mu.Lock()
		q.interactions[item.DiscordInteraction.ID] = item.Request.RequestID
		q.mu.Unlock()
	}
	q.queue <- item

	return len(q.queue), nil
}

func (q *ComfyQueue) Start(botSession *discordgo.Session) {
	q.botSession = botSession

	signal.Notify(q.stop, os.Interrupt)

	var once bool

Polling:
	for {
		select {
		case <-q.stop:
			break Polling
		case <-time.After(1 * time.Second):
			if evicted := q.jobs.evict(); len(evicted) > 0 {
				q.forget(evicted)
			}
			if q.activeCount() < q.maxConcurrent {
				if err := q.next(); err != nil {
					log.Printf("Error processing next item: %v", err)
				}
				once = false
			} else if !once {
				log.Printf("Waiting for a running generation to finish...")
				once = true
			}
		}
	}

	signal.Stop(q.stop)
	q.wg.Wait()
	log.Println("Polling stopped for ComfyUI")
}

func (q *ComfyQueue) Stop() {
	q.stop <- os.Interrupt
}

// Remove marks a queued item as cancelled by the interaction that created
// it. The item is skipped when it reaches the head of the queue, so the
// backend never sees it.
func (q *ComfyQueue) Remove(messageInteraction *discordgo.MessageInteraction) error {
	q.mu.Lock()
	q.cancelled[messageInteraction.ID] = true
	q.mu.Unlock()

	return nil
}

// Interrupt stops the running generation that belongs to interaction i's
// original message.
func (q *ComfyQueue) Interrupt(i *discordgo.Interaction) error {
	item := q.activeItem(i)
	if item == nil {
		return errors.New("there is no generation currently in progress")
	}

	log.Printf("Interrupting generation #%s", item.Request.RequestID)
	select {
	case item.Interrupt <- i:
	default:
		// a second press while the first interrupt is still being handled
	}

	return nil
}

// Job returns a snapshot of the job created for a request.
func (q *ComfyQueue) Job(requestID string) (entities.Job, bool) {
	return q.jobs.Get(requestID)
}

// forget drops interaction mappings whose jobs were evicted.
func (q *ComfyQueue) forget(requestIDs []string) {
	evicted := make(map[string]bool, len(requestIDs))
	for _, id := range requestIDs {
		evicted[id] = true
	}

	q.mu.Lock()
	for interactionID, requestID := range q.interactions {
		if evicted[requestID] {
			delete(q.interactions, interactionID)
		}
	}
	q.mu.Unlock()
}

func (q *ComfyQueue) activeCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// activeItem finds the running item whose deferred response message matches
// the component interaction, falling back to the only running item when
// there is exactly one.
func (q *ComfyQueue) activeItem(i *discordgo.Interaction) *ComfyQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i != nil && i.Message != nil && i.Message.Interaction != nil {
		for _, item := range q.active {
			if item.DiscordInteraction != nil && item.DiscordInteraction.ID == i.Message.Interaction.ID {
				return item
			}
		}
	}
	if len(q.active) == 1 {
		for _, item := range q.active {
			return item
		}
	}
	return nil
}
