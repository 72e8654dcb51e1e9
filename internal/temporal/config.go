package temporal

import (
	"time"

	"github.com/stanstork/mapscrape-api/internal/models"
)

// TaskQueueName is the Temporal task queue that runs scrape batches.
const TaskQueueName = "MAPSCRAPE_BATCH"

// BatchWorkflowIDPrefix prefixes the IDs of scrape batch workflows.
const BatchWorkflowIDPrefix = "mapscrape-batch-"

// DefaultActivityTimeout bounds a single row activity. Run polling itself has
// no ceiling, so this is deliberately generous.
const DefaultActivityTimeout = 24 * time.Hour

// HeartbeatTimeout must exceed the executor poll interval.
const HeartbeatTimeout = time.Minute

// BatchParams is the input of the batch workflow.
type BatchParams struct {
	BatchID        string
	TenantID       string
	Rows           []models.Row
	ContinueOnFail bool
	AuthMethod     string
	AIToolCall     bool
}

// RowParams is the input of a single row activity. It carries only its own
// row so the workflow history stays linear in the batch size.
type RowParams struct {
	BatchID        string
	TenantID       string
	Row            models.Row
	Index          int
	ContinueOnFail bool
	AuthMethod     string
	AIToolCall     bool
}

// RowParamsAt returns the activity input for row index of p.
func (p BatchParams) RowParamsAt(index int) RowParams {
	return RowParams{
		BatchID:        p.BatchID,
		TenantID:       p.TenantID,
		Row:            p.Rows[index],
		Index:          index,
		ContinueOnFail: p.ContinueOnFail,
		AuthMethod:     p.AuthMethod,
		AIToolCall:     p.AIToolCall,
	}
}

// BatchResult is what a finished batch workflow returns. When the batch
// stopped at a failing row, Aborted is set and Error holds the reason.
type BatchResult struct {
	BatchID   string                `json:"batch_id"`
	Records   []models.OutputRecord `json:"records"`
	Aborted   bool                  `json:"aborted"`
	FailedRow int                   `json:"failed_row"`
	Error     string                `json:"error,omitempty"`
}
