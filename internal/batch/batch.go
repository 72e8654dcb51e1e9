package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/actor"
	"github.com/stanstork/mapscrape-api/internal/executor"
	"github.com/stanstork/mapscrape-api/internal/models"
	"github.com/stanstork/mapscrape-api/internal/normalizer"
)

// Batch is one invocation over a list of input rows.
type Batch struct {
	ID             string
	TenantID       string
	Rows           []models.Row
	ContinueOnFail bool
	Call           actor.CallOptions
}

// RowError reports the row that aborted a batch.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type Executor interface {
	Execute(ctx context.Context, actorID string, params models.Params) (*executor.Result, error)
}

// ExecutorFor returns an executor bound to the call options of a batch.
type ExecutorFor func(call actor.CallOptions) Executor

// Recorder keeps the history of row executions.
type Recorder interface {
	Create(ctx context.Context, rec models.RunRecord) (models.RunRecord, error)
	Complete(ctx context.Context, rec models.RunRecord) error
}

type Runner struct {
	actorID     string
	executorFor ExecutorFor
	recorder    Recorder
	logger      zerolog.Logger
}

// NewRunner builds a Runner. recorder may be nil.
func NewRunner(actorID string, executorFor ExecutorFor, recorder Recorder, logger zerolog.Logger) *Runner {
	return &Runner{
		actorID:     actorID,
		executorFor: executorFor,
		recorder:    recorder,
		logger:      logger.With().Str("component", "batch_runner").Logger(),
	}
}

// Run processes the rows of b one after another. With ContinueOnFail a failed
// row yields a single error record and the batch goes on; otherwise the
// records emitted so far are returned together with a *RowError.
func (r *Runner) Run(ctx context.Context, b Batch) ([]models.OutputRecord, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	log := r.logger.With().Str("batch", b.ID).Logger()
	log.Info().Int("rows", len(b.Rows)).Bool("continue_on_fail", b.ContinueOnFail).Msg("Batch started")

	var out []models.OutputRecord
	for i := range b.Rows {
		if err := ctx.Err(); err != nil {
			return out, &RowError{Index: i, Err: err}
		}

		records, err := r.RunRow(ctx, b, i)
		if err != nil {
			log.Error().Err(err).Int("row", i).Msg("Row failed")
			if b.ContinueOnFail {
				out = append(out, models.NewErrorRecord(err.Error(), i))
				continue
			}
			return out, &RowError{Index: i, Err: err}
		}
		out = append(out, records...)
	}

	log.Info().Int("records", len(out)).Msg("Batch finished")
	return out, nil
}

// RunRow normalizes, executes and fetches row index of b.
func (r *Runner) RunRow(ctx context.Context, b Batch, index int) ([]models.OutputRecord, error) {
	if index < 0 || index >= len(b.Rows) {
		return nil, fmt.Errorf("row index %d out of range (%d rows)", index, len(b.Rows))
	}
	return r.RunSingle(ctx, b, b.Rows[index], index)
}

// RunSingle executes row on behalf of batch b. Records and history are tagged
// with index; b.Rows is not consulted.
func (r *Runner) RunSingle(ctx context.Context, b Batch, row models.Row, index int) ([]models.OutputRecord, error) {
	rec := r.begin(ctx, b, index)

	params, err := normalizer.Normalize([]models.Row{row}, 0)
	if err != nil {
		r.complete(ctx, rec, nil, err)
		return nil, err
	}

	res, err := r.executorFor(b.Call).Execute(ctx, r.actorID, params)
	r.complete(ctx, rec, res, err)
	if err != nil {
		return nil, err
	}
	return executor.ToRecords(res.Items, index), nil
}

func (r *Runner) begin(ctx context.Context, b Batch, index int) *models.RunRecord {
	if r.recorder == nil {
		return nil
	}
	rec, err := r.recorder.Create(ctx, models.RunRecord{
		BatchID:  b.ID,
		RowIndex: index,
		TenantID: b.TenantID,
		ActorID:  r.actorID,
		Status:   string(models.RunStatusReady),
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("batch", b.ID).Int("row", index).Msg("Failed to record run start")
		return nil
	}
	return &rec
}

func (r *Runner) complete(ctx context.Context, rec *models.RunRecord, res *executor.Result, runErr error) {
	if r.recorder == nil || rec == nil {
		return
	}
	now := time.Now().UTC()
	rec.FinishedAt = &now
	if res != nil && res.Run != nil {
		rec.RunID = &res.Run.ID
		rec.DatasetID = &res.Run.DefaultDatasetID
		rec.Status = string(res.Run.Status)
		rec.ItemCount = int64(len(res.Items))
	}
	if runErr != nil {
		msg := runErr.Error()
		rec.ErrorMessage = &msg
		rec.Status = string(models.RunStatusFailed)
	}
	if err := r.recorder.Complete(ctx, *rec); err != nil {
		r.logger.Warn().Err(err).Str("record", rec.ID).Msg("Failed to record run completion")
	}
}
