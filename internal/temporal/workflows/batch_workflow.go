package workflows

import (
	"errors"

	"github.com/stanstork/mapscrape-api/internal/models"
	"github.com/stanstork/mapscrape-api/internal/temporal"
	"github.com/stanstork/mapscrape-api/internal/temporal/activities"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ScrapeBatchWorkflow runs the rows of a batch one after another.
func ScrapeBatchWorkflow(ctx workflow.Context, params temporal.BatchParams) (*temporal.BatchResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		HeartbeatTimeout:    temporal.HeartbeatTimeout,
		// Rows are never retried.
		RetryPolicy: &sdktemporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting scrape batch workflow", "BatchID", params.BatchID, "Rows", len(params.Rows))

	// The actual implementation is on the worker; this is just a proxy.
	var a *activities.Activities

	result := &temporal.BatchResult{BatchID: params.BatchID, Records: []models.OutputRecord{}}
	for i := range params.Rows {
		var records []models.OutputRecord
		err := workflow.ExecuteActivity(ctx, a.RunRowActivity, params.RowParamsAt(i)).Get(ctx, &records)
		if err != nil {
			msg := activityMessage(err)
			if params.ContinueOnFail {
				logger.Warn("Row failed, continuing", "Row", i, "error", msg)
				result.Records = append(result.Records, models.NewErrorRecord(msg, i))
				continue
			}
			logger.Error("Row failed, aborting batch", "Row", i, "error", msg)
			result.Aborted = true
			result.FailedRow = i
			result.Error = msg
			return result, nil
		}
		result.Records = append(result.Records, records...)
	}

	logger.Info("Scrape batch workflow completed", "BatchID", params.BatchID, "Records", len(result.Records))
	return result, nil
}

// activityMessage strips the Temporal wrapping off an activity failure.
func activityMessage(err error) string {
	var appErr *sdktemporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}
