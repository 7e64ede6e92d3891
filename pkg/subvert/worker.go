// Package subvert consumes story change events and turns each new story
// into a set of satirical headline candidates via a two-stage pipeline:
// brainstorm comedic angles, then draft headlines per angle.
package subvert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/satyrpress/satyr/pkg/llm"
	"github.com/satyrpress/satyr/pkg/models"
	"github.com/satyrpress/satyr/pkg/prompt"
)

// inspirationWords is how many random word-bank words ride along on a
// brainstorm call.
const inspirationWords = 8

// Gateway is the model gateway surface the worker calls.
type Gateway interface {
	Call(ctx context.Context, stage llm.Stage, req llm.Request) (llm.Completion, error)
}

// HeadlineStore is the store surface the worker writes through.
type HeadlineStore interface {
	HeadlinesExistForStory(ctx context.Context, day, storyID string) (bool, error)
	PutHeadlines(ctx context.Context, headlines []models.Headline) error
}

// WordSource supplies random inspiration words.
type WordSource interface {
	RandomWords(ctx context.Context, n int, wordTypes ...string) ([]string, error)
}

// Worker is the story-stream consumer.
type Worker struct {
	gateway Gateway
	store   HeadlineStore
	words   WordSource
	log     *slog.Logger
	now     func() time.Time
}

// NewWorker wires a subvert worker.
func NewWorker(gateway Gateway, store HeadlineStore, words WordSource) *Worker {
	return &Worker{
		gateway: gateway,
		store:   store,
		words:   words,
		log:     slog.With("component", "subvert"),
		now:     time.Now,
	}
}

// Name identifies the consumer in dispatcher logs.
func (w *Worker) Name() string { return "subvert" }

// HandleBatch processes one claimed batch of story events, one goroutine
// per story. A story failing aborts that story only; the batch always
// succeeds so redelivery happens at most through crashes, which the dedup
// guard absorbs.
func (w *Worker) HandleBatch(ctx context.Context, events []models.ChangeEvent) error {
	var wg sync.WaitGroup
	for _, event := range events {
		if event.EventName != models.EventInsert && event.EventName != models.EventModify {
			w.log.Debug("Skipped non-write event", "event", event.ID, "name", event.EventName)
			continue
		}

		story, err := event.Story()
		if err != nil {
			w.log.Error("Skipped undecodable story event", "event", event.ID, "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.processStory(ctx, story); err != nil {
				w.log.Error("Story subversion failed",
					"day", story.YearMonthDay, "story", story.StoryID, "error", err)
			}
		}()
	}
	wg.Wait()
	return nil
}

// processStory runs the full pipeline for one story: dedup, brainstorm,
// generate, persist. All-or-nothing; a mid-pipeline failure writes no
// headlines, so the redelivered event retries cleanly.
func (w *Worker) processStory(ctx context.Context, story models.Story) error {
	exists, err := w.store.HeadlinesExistForStory(ctx, story.YearMonthDay, story.StoryID)
	if err != nil {
		return err
	}
	if exists {
		w.log.Info("Skipped story, already subverted",
			"day", story.YearMonthDay, "story", story.StoryID)
		return nil
	}

	angles := w.brainstorm(ctx, story)

	var headlines []models.Headline
	for _, angle := range angles {
		for _, text := range w.generate(ctx, story, angle) {
			headlines = append(headlines, models.Headline{
				YearMonthDay:     story.YearMonthDay,
				HeadlineID:       models.NewRecordID(),
				Headline:         text,
				OriginalHeadline: story.Title,
				Angle:            angle.Name,
				AngleSetup:       angle.Setup,
				StoryID:          story.StoryID,
				CreateTime:       w.now().UTC(),
			})
		}
	}

	if len(headlines) == 0 {
		w.log.Warn("No headlines generated",
			"day", story.YearMonthDay, "story", story.StoryID, "angles", len(angles))
		return nil
	}

	if err := w.store.PutHeadlines(ctx, headlines); err != nil {
		return err
	}
	w.log.Info("Story subverted",
		"day", story.YearMonthDay, "story", story.StoryID,
		"angles", len(angles), "headlines", len(headlines))
	return nil
}

// brainstorm is stage 1: propose comedic angles. Any failure falls back
// to the default angle set so the story still gets headlines.
func (w *Worker) brainstorm(ctx context.Context, story models.Story) []prompt.Angle {
	inspiration, err := w.words.RandomWords(ctx, inspirationWords)
	if err != nil {
		w.log.Warn("Word bank unavailable, brainstorming dry", "error", err)
	}

	completion, err := w.gateway.Call(ctx, llm.StageBrainstorm, llm.Request{
		System:      prompt.BrainstormSystem,
		Prompt:      prompt.BuildBrainstorm(story, inspiration),
		MaxTokens:   1024,
		Temperature: 1.0,
	})
	if err != nil {
		w.log.Warn("Brainstorm call failed, using default angles",
			"story", story.StoryID, "error", err)
		return prompt.DefaultAngles()
	}

	angles := prompt.ParseAngles(completion.Text)
	if angles == nil {
		w.log.Warn("Brainstorm response unparseable, using default angles",
			"story", story.StoryID)
		return prompt.DefaultAngles()
	}
	return angles
}

// generate is stage 2: draft headlines for one angle. Failures yield an
// empty set; the story's other angles still contribute.
func (w *Worker) generate(ctx context.Context, story models.Story, angle prompt.Angle) []string {
	completion, err := w.gateway.Call(ctx, llm.StageGenerate, llm.Request{
		System:      prompt.GenerateSystem,
		Prompt:      prompt.BuildGenerate(story, angle),
		MaxTokens:   512,
		Temperature: 1.1,
	})
	if err != nil {
		w.log.Warn("Generate call failed for angle",
			"story", story.StoryID, "angle", angle.Name, "error", err)
		return nil
	}
	return prompt.ParseHeadlines(completion.Text)
}
