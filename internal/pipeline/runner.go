// Package pipeline drives the domain visibility analysis stages
// through the workflow engine. The stage algorithms themselves are
// collaborators; the runner owns ordering, persistence after each
// stage, and resumption from the last verified step.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

// ContextExtractor produces the brand context for a domain.
type ContextExtractor interface {
	ExtractContext(ctx context.Context, domainURL string) (string, error)
}

// KeywordRecommender proposes search keywords from a brand context.
type KeywordRecommender interface {
	RecommendKeywords(ctx context.Context, domainURL, brandContext string) ([]string, error)
}

// PhraseGenerator produces query phrases for one keyword.
type PhraseGenerator interface {
	GeneratePhrases(ctx context.Context, keyword, brandContext string) ([]string, error)
}

// ModelQuerier puts one phrase to a generative model and returns the
// answer text.
type ModelQuerier interface {
	Query(ctx context.Context, phrase string) (string, error)
}

// Event is one progress notification emitted while a stage runs.
// Events are transient chatter for clients; only final stage outputs
// are persisted.
type Event struct {
	Step    progress.Step `json:"step"`
	Stage   string        `json:"stage"`
	Message string        `json:"message"`
	Done    int           `json:"done,omitempty"`
	Total   int           `json:"total,omitempty"`
}

// Runner executes the pipeline for one subject, saving through the
// store after every stage so a crash at any point resumes cleanly.
type Runner struct {
	store       progress.Store
	coord       *progress.Coordinator
	extractor   ContextExtractor
	keywords    KeywordRecommender
	phrases     PhraseGenerator
	querier     ModelQuerier
	concurrency int
	notify      func(Event)
}

// RunnerConfig wires the runner's collaborators.
type RunnerConfig struct {
	Store     progress.Store
	Extractor ContextExtractor
	Keywords  KeywordRecommender
	Phrases   PhraseGenerator
	Querier   ModelQuerier
	// Concurrency bounds parallel model queries. Defaults to 4.
	Concurrency int
	// Notify receives transient progress events. May be nil.
	Notify func(Event)
}

// NewRunner creates a pipeline runner.
func NewRunner(cfg RunnerConfig) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(Event) {}
	}
	return &Runner{
		store:       cfg.Store,
		coord:       progress.NewCoordinator(cfg.Store),
		extractor:   cfg.Extractor,
		keywords:    cfg.Keywords,
		phrases:     cfg.Phrases,
		querier:     cfg.Querier,
		concurrency: concurrency,
		notify:      notify,
	}
}

// Run executes the pipeline for key from wherever it can safely
// resume, through to completion. A fresh subject starts at submission
// with domainURL; an existing one continues at its validated step.
func (r *Runner) Run(ctx context.Context, key progress.SubjectKey, domainURL string) (*progress.Record, error) {
	rec, err := r.resumeOrStart(ctx, key, domainURL)
	if err != nil {
		return nil, err
	}

	// A record can sit at the terminal step without the completion flag
	// when a client saved it that way. All stage outputs were verified
	// on resume, so there is nothing left to run; settle the flag.
	if rec.CurrentStep.Terminal() && !rec.IsCompleted {
		rec, err = r.store.Save(ctx, key, rec.CurrentStep, &progress.StageBundle{}, true)
		if err != nil {
			return nil, err
		}
	}

	for !rec.IsCompleted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err = r.runStage(ctx, rec)
		if err != nil {
			return nil, err
		}
	}

	r.notify(Event{Step: rec.CurrentStep, Stage: rec.CurrentStep.String(), Message: "analysis complete"})
	return rec, nil
}

func (r *Runner) resumeOrStart(ctx context.Context, key progress.SubjectKey, domainURL string) (*progress.Record, error) {
	result, err := r.coord.Resume(ctx, key)
	if err == nil {
		if result.WasAdjusted {
			r.notify(Event{
				Step:    result.CurrentStep,
				Stage:   result.CurrentStep.String(),
				Message: fmt.Sprintf("resumed at %s (%s)", result.CurrentStep.String(), result.Reason),
			})
		}
		if result.CurrentStep == progress.StepSubmission {
			// Rolled all the way back: re-record the submission.
			if domainURL == "" {
				domainURL = result.StepData.DomainURL
			}
			bundle := &progress.StageBundle{DomainURL: domainURL, DomainID: key.DomainID}
			return r.coord.Advance(ctx, key, progress.StepSubmission, bundle)
		}
		return &progress.Record{
			Key:          key,
			CurrentStep:  result.CurrentStep,
			StepData:     result.StepData,
			IsCompleted:  result.IsCompleted,
			LastActivity: result.LastActivity,
		}, nil
	}
	if !errors.Is(err, progress.ErrNotFound) {
		return nil, err
	}

	// Fresh subject: record the submission.
	bundle := &progress.StageBundle{DomainURL: domainURL, DomainID: key.DomainID}
	return r.coord.Advance(ctx, key, progress.StepSubmission, bundle)
}

// runStage executes the stage the record currently sits at and
// advances by one.
func (r *Runner) runStage(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	bundle := rec.StepData
	switch rec.CurrentStep {
	case progress.StepContextExtraction:
		r.notify(Event{Step: rec.CurrentStep, Stage: "context_extraction", Message: "extracting brand context"})
		brandContext, err := r.extractor.ExtractContext(ctx, bundle.DomainURL)
		if err != nil {
			return nil, fmt.Errorf("context extraction failed: %w", err)
		}
		return r.coord.Advance(ctx, rec.Key, rec.CurrentStep, &progress.StageBundle{BrandContext: brandContext})

	case progress.StepKeywordDiscovery:
		r.notify(Event{Step: rec.CurrentStep, Stage: "keyword_discovery", Message: "discovering keywords"})
		keywords, err := r.keywords.RecommendKeywords(ctx, bundle.DomainURL, bundle.BrandContext)
		if err != nil {
			return nil, fmt.Errorf("keyword discovery failed: %w", err)
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("keyword discovery returned no keywords")
		}
		return r.coord.Advance(ctx, rec.Key, rec.CurrentStep, &progress.StageBundle{SelectedKeywords: keywords})

	case progress.StepPhraseGeneration:
		generated, err := r.generateAllPhrases(ctx, bundle)
		if err != nil {
			return nil, err
		}
		return r.coord.Advance(ctx, rec.Key, rec.CurrentStep, &progress.StageBundle{GeneratedPhrases: generated})

	case progress.StepModelQuerying:
		results, stats, err := r.queryAllPhrases(ctx, bundle)
		if err != nil {
			return nil, err
		}
		return r.coord.Advance(ctx, rec.Key, rec.CurrentStep, &progress.StageBundle{
			QueryResults: results,
			QueryStats:   stats,
		})

	default:
		return nil, fmt.Errorf("no stage to run at step %s", rec.CurrentStep.String())
	}
}

func (r *Runner) generateAllPhrases(ctx context.Context, bundle *progress.StageBundle) ([]progress.KeywordPhrases, error) {
	total := len(bundle.SelectedKeywords)
	generated := make([]progress.KeywordPhrases, 0, total)
	for i, keyword := range bundle.SelectedKeywords {
		r.notify(Event{
			Step: progress.StepPhraseGeneration, Stage: "phrase_generation",
			Message: fmt.Sprintf("generating phrases for %q", keyword),
			Done:    i, Total: total,
		})
		phrases, err := r.phrases.GeneratePhrases(ctx, keyword, bundle.BrandContext)
		if err != nil {
			return nil, fmt.Errorf("phrase generation failed for %q: %w", keyword, err)
		}
		if len(phrases) == 0 {
			return nil, fmt.Errorf("phrase generation returned nothing for %q", keyword)
		}
		generated = append(generated, progress.KeywordPhrases{Keyword: keyword, Phrases: phrases})
	}
	return generated, nil
}

// queryAllPhrases fans the generated phrases out to the model with
// bounded concurrency and aggregates visibility stats. Result order
// follows phrase generation order regardless of completion order.
func (r *Runner) queryAllPhrases(ctx context.Context, bundle *progress.StageBundle) (json.RawMessage, json.RawMessage, error) {
	type job struct {
		idx     int
		keyword string
		phrase  string
	}

	var jobs []job
	for _, kp := range bundle.GeneratedPhrases {
		for _, phrase := range kp.Phrases {
			jobs = append(jobs, job{idx: len(jobs), keyword: kp.Keyword, phrase: phrase})
		}
	}

	results := make([]QueryResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, j := range jobs {
		g.Go(func() error {
			answer, err := r.querier.Query(gctx, j.phrase)
			if err != nil {
				return fmt.Errorf("model query failed for %q: %w", j.phrase, err)
			}
			results[j.idx] = ScoreResponse(j.keyword, j.phrase, answer, bundle.DomainURL)
			r.notify(Event{
				Step: progress.StepModelQuerying, Stage: "model_querying",
				Message: fmt.Sprintf("queried %q", j.phrase),
				Done:    j.idx + 1, Total: len(jobs),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal query results: %w", err)
	}
	statsJSON, err := json.Marshal(ComputeStats(results))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal query stats: %w", err)
	}
	return resultsJSON, statsJSON, nil
}
