package comfyui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"flux_comfy_bot/api/comfyui"
	"flux_comfy_bot/discord_bot/handlers"
	"flux_comfy_bot/entities"
)

const enhanceTimeout = 45 * time.Second

// next admits the item at the head of the queue, skipping any that were
// cancelled while waiting. Cancelled items go terminal without the backend
// ever seeing them.
func (q *ComfyQueue) next() error {
	for len(q.queue) > 0 {
		select {
		case item := <-q.queue:
			if item.DiscordInteraction == nil {
				log.Panicf("DiscordInteraction is nil! Make sure to set it before adding to the queue.\n%v", item)
			}

			q.mu.Lock()
			if q.cancelled[item.DiscordInteraction.ID] {
				delete(q.cancelled, item.DiscordInteraction.ID)
				q.mu.Unlock()

				q.jobs.Transition(item.Request.RequestID, entities.JobCancelled)
				if job, ok := q.jobs.Get(item.Request.RequestID); ok {
					q.notifier.Cancelled(item, &job)
				}
				q.recordHistory(item)
				continue
			}

			if item.Interrupt == nil {
				item.Interrupt = make(chan *discordgo.Interaction, 1)
			}
			q.active[item.Request.RequestID] = item
			q.mu.Unlock()

			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				q.process(item)
			}()
			return nil
		default:
			return nil
		}
	}
	return nil
}

func (q *ComfyQueue) done(item *ComfyQueueItem) {
	q.mu.Lock()
	delete(q.active, item.Request.RequestID)
	if item.DiscordInteraction != nil {
		delete(q.cancelled, item.DiscordInteraction.ID)
	}
	q.mu.Unlock()
}

func (q *ComfyQueue) process(item *ComfyQueueItem) {
	defer q.done(item)

	id := item.Request.RequestID
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	q.enhance(ctx, item)

	workflow, err := q.prepareWorkflow(item)
	if err != nil {
		q.fail(item, err)
		return
	}

	promptID, err := q.client.QueuePrompt(ctx, workflow)
	if err != nil {
		q.fail(item, fmt.Errorf("error submitting prompt: %w", err))
		return
	}

	q.jobs.SetPromptID(id, promptID)
	q.jobs.Transition(id, entities.JobSubmitted)
	if job, ok := q.jobs.Get(id); ok {
		q.notifier.Progress(item, &job)
	}

	events, err := q.client.Watch(ctx, promptID)
	if err != nil {
		q.fail(item, fmt.Errorf("error opening progress stream: %w", err))
		return
	}

	var lastMilestone float64
	for {
		select {
		case <-ctx.Done():
			// best effort: free the backend before reporting the timeout
			if err := q.client.Interrupt(context.Background()); err != nil {
				log.Printf("Error interrupting timed out generation %s: %v", id, err)
			}
			q.fail(item, fmt.Errorf("generation timed out after %s", q.timeout))
			return

		case <-item.Interrupt:
			if err := q.client.Interrupt(ctx); err != nil {
				log.Printf("Error interrupting generation %s: %v", id, err)
			}
			q.cancel(item)
			return

		case event, ok := <-events:
			if !ok {
				q.fail(item, errors.New("progress stream ended without a result"))
				return
			}

			q.jobs.Apply(id, event)

			switch event.Phase {
			case entities.PhaseError:
				if errors.Is(event.Err, comfyui.ErrInterrupted) {
					q.cancel(item)
				} else {
					q.fail(item, event.Err)
				}
				return
			case entities.PhaseComplete:
				q.finish(ctx, item)
				return
			default:
				job, ok := q.jobs.Get(id)
				if !ok {
					continue
				}
				// edit the response at coarse milestones, Discord rate
				// limits frequent edits
				if job.Progress >= lastMilestone+0.1 || event.Phase == entities.PhaseStarting {
					lastMilestone = job.Progress
					q.notifier.Progress(item, &job)
				}
			}
		}
	}
}

// enhance rewrites the prompt through the configured LLM. Failures are not
// fatal: the original prompt is used and the job continues.
func (q *ComfyQueue) enhance(ctx context.Context, item *ComfyQueueItem) {
	if q.enhancer == nil || item.Request.Creativity < entities.MinCreativity {
		return
	}

	enhanceCtx, cancel := context.WithTimeout(ctx, enhanceTimeout)
	defer cancel()

	enhancement, err := q.enhancer.Enhance(enhanceCtx, item.Request.Prompt, item.Request.Creativity)
	if err != nil {
		log.Printf("Error enhancing prompt for %s, using original: %v", item.Request.RequestID, err)
		if q.botSession != nil {
			if _, err := handlers.EphemeralFollowup(q.botSession, item.DiscordInteraction,
				"Prompt enhancement failed, generating with your original prompt."); err != nil {
				log.Printf("Error sending followup for %s: %v", item.Request.RequestID, err)
			}
		}
		return
	}
	item.Request.EnhancedPrompt = enhancement.Enhanced
}

// prepareWorkflow loads the workflow template and fills it from the
// request. Errors here are terminal, a broken template will not fix itself
// on retry.
func (q *ComfyQueue) prepareWorkflow(item *ComfyQueueItem) (comfyui.Workflow, error) {
	template, err := comfyui.LoadWorkflow(item.Request.WorkflowFilename)
	if err != nil {
		return nil, err
	}

	workflow := template.Clone()
	if err := workflow.Apply(item.Request, q.loras); err != nil {
		return nil, err
	}

	// read the seed back so rerolls and embeds show what actually ran
	item.Request.Seed = workflow.Seed()

	return workflow, nil
}

func (q *ComfyQueue) finish(ctx context.Context, item *ComfyQueueItem) {
	id := item.Request.RequestID

	job, ok := q.jobs.Get(id)
	if !ok {
		return
	}
	if job.PromptID == "" {
		q.fail(item, errors.New("finished job has no prompt ID"))
		return
	}

	images, err := q.client.Outputs(ctx, job.PromptID)
	if err != nil {
		q.fail(item, fmt.Errorf("error downloading outputs: %w", err))
		return
	}

	q.jobs.SetImages(id, images)
	q.jobs.Transition(id, entities.JobSucceeded)

	if job, ok := q.jobs.Get(id); ok {
		q.notifier.Succeeded(item, &job)
	}
	q.recordHistory(item)
}

func (q *ComfyQueue) fail(item *ComfyQueueItem, err error) {
	id := item.Request.RequestID

	if !q.jobs.Fail(id, err) {
		// already terminal, a cancellation beat us to it
		return
	}
	log.Printf("Generation %s failed: %v", id, err)

	if job, ok := q.jobs.Get(id); ok {
		q.notifier.Failed(item, &job)
	}
	q.recordHistory(item)
}

func (q *ComfyQueue) cancel(item *ComfyQueueItem) {
	id := item.Request.RequestID

	if !q.jobs.Transition(id, entities.JobCancelled) {
		return
	}

	if job, ok := q.jobs.Get(id); ok {
		q.notifier.Cancelled(item, &job)
	}
	q.recordHistory(item)
}

func (q *ComfyQueue) recordHistory(item *ComfyQueueItem) {
	if q.historyRepo == nil {
		return
	}

	job, ok := q.jobs.Get(item.Request.RequestID)
	if !ok {
		return
	}

	entry := &entities.HistoryEntry{
		RequestID:  job.ID,
		UserID:     job.Request.UserID,
		ChannelID:  job.Request.ChannelID,
		Prompt:     job.Request.Prompt,
		Enhanced:   job.Request.EnhancedPrompt,
		Resolution: job.Request.Resolution,
		Loras:      job.Request.Loras,
		Upscale:    job.Request.UpscaleFactor,
		Creativity: job.Request.Creativity,
		Seed:       job.Request.Seed,
		Status:     job.Status.String(),
		Error:      job.Error,
	}
	if item.DiscordInteraction != nil && item.DiscordInteraction.Message != nil {
		entry.MessageID = item.DiscordInteraction.Message.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := q.historyRepo.Create(ctx, entry); err != nil {
		log.Printf("Error recording history for %s: %v", job.ID, err)
	}
}
