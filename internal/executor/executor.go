package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/actor"
	"github.com/stanstork/mapscrape-api/internal/models"
)

// DefaultPollInterval is how often a submitted run's status is fetched.
const DefaultPollInterval = time.Second

// API is the part of the remote service the executor drives.
type API interface {
	GetDefaultBuild(ctx context.Context, actorID string) (*models.Build, error)
	StartRun(ctx context.Context, actorID string, input models.Params) (*models.Run, error)
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListItems(ctx context.Context, datasetID string) ([]json.RawMessage, error)
}

type PollHook func(ctx context.Context, run *models.Run)

type Executor struct {
	api          API
	pollInterval time.Duration
	onPoll       PollHook
	logger       zerolog.Logger
}

type Opt func(*Executor)

func WithPollInterval(d time.Duration) Opt {
	return func(e *Executor) { e.pollInterval = d }
}

// WithPollHook registers fn to be called after every status fetch.
func WithPollHook(fn PollHook) Opt {
	return func(e *Executor) { e.onPoll = fn }
}

func New(api API, logger zerolog.Logger, opts ...Opt) *Executor {
	e := &Executor{
		api:          api,
		pollInterval: DefaultPollInterval,
		logger:       logger.With().Str("component", "executor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pollInterval <= 0 {
		e.pollInterval = DefaultPollInterval
	}
	return e
}

// Result is the outcome of one actor run.
type Result struct {
	Run   *models.Run
	Items []json.RawMessage
}

// Execute runs actorID with params layered over the actor's default input and
// returns the run's dataset items once it reaches a terminal status. If the
// run was submitted before a failure, the returned Result carries the run.
func (e *Executor) Execute(ctx context.Context, actorID string, params models.Params) (*Result, error) {
	build, err := e.api.GetDefaultBuild(ctx, actorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch default build")
	}

	input := Merge(DefaultInput(build), params)

	run, err := e.api.StartRun(ctx, actorID, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start actor run")
	}
	e.logger.Info().Str("actor", actorID).Str("run", run.ID).Str("dataset", run.DefaultDatasetID).Msg("Actor run started")

	res := &Result{Run: run}
	final, err := e.Wait(ctx, run.ID)
	if err != nil {
		return res, err
	}
	if final.DefaultDatasetID == "" {
		final.DefaultDatasetID = run.DefaultDatasetID
	}
	res.Run = final

	if final.Status != models.RunStatusSucceeded {
		e.logger.Warn().Str("run", final.ID).Str("status", string(final.Status)).Msg("Actor run did not succeed, fetching whatever it produced")
	}
	if final.DefaultDatasetID == "" {
		return res, &actor.APIError{Message: "run " + final.ID + " did not report a dataset ID"}
	}

	items, err := e.fetch(ctx, final.DefaultDatasetID)
	if err != nil {
		return res, err
	}
	res.Items = items
	return res, nil
}

// Wait fetches the run status until it is terminal. There is no attempt
// ceiling; only ctx bounds the wait. A failed status fetch stops polling.
func (e *Executor) Wait(ctx context.Context, runID string) (*models.Run, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		run, err := e.api.GetRun(ctx, runID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to poll run %s", runID)
		}
		if e.onPoll != nil {
			e.onPoll(ctx, run)
		}
		e.logger.Debug().Str("run", runID).Str("status", string(run.Status)).Msg("Polled actor run")
		if run.Status.IsTerminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DefaultInput collects the prefilled (or, lacking a prefill, default) value
// of every input property of build.
func DefaultInput(build *models.Build) models.Params {
	defaults := models.Params{}
	if build == nil {
		return defaults
	}
	for name, prop := range build.ActorDefinition.Input.Properties {
		switch {
		case prop.Prefill != nil:
			defaults[name] = prop.Prefill
		case prop.Default != nil:
			defaults[name] = prop.Default
		}
	}
	return defaults
}

// Merge layers params over defaults; params always win.
func Merge(defaults, params models.Params) models.Params {
	merged := defaults.Clone()
	for k, v := range params {
		merged[k] = v
	}
	return merged
}
