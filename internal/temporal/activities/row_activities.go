package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/stanstork/mapscrape-api/internal/actor"
	"github.com/stanstork/mapscrape-api/internal/batch"
	"github.com/stanstork/mapscrape-api/internal/models"
	"github.com/stanstork/mapscrape-api/internal/temporal"
)

type Activities struct {
	Runner *batch.Runner
}

// RunRowActivity executes one row of a batch.
func (a *Activities) RunRowActivity(ctx context.Context, params temporal.RowParams) ([]models.OutputRecord, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running batch row", "batchID", params.BatchID, "row", params.Index)

	method, err := actor.ParseAuthMethod(params.AuthMethod)
	if err != nil {
		return nil, err
	}

	records, err := a.Runner.RunSingle(ctx, batch.Batch{
		ID:             params.BatchID,
		TenantID:       params.TenantID,
		ContinueOnFail: params.ContinueOnFail,
		Call:           actor.CallOptions{AuthMethod: method, AIToolCall: params.AIToolCall},
	}, params.Row, params.Index)
	if err != nil {
		logger.Error("Batch row failed", "batchID", params.BatchID, "row", params.Index, "error", err)
		return nil, err
	}

	logger.Info("Batch row finished", "batchID", params.BatchID, "row", params.Index, "records", len(records))
	return records, nil
}

// Heartbeat reports every run status fetch to Temporal so long polls keep the
// activity alive.
func Heartbeat(ctx context.Context, run *models.Run) {
	activity.RecordHeartbeat(ctx, string(run.Status))
}
