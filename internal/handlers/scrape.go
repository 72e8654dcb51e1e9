package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/actor"
	"github.com/stanstork/mapscrape-api/internal/authz"
	"github.com/stanstork/mapscrape-api/internal/batch"
	"github.com/stanstork/mapscrape-api/internal/models"
	"github.com/stanstork/mapscrape-api/internal/normalizer"
	"github.com/stanstork/mapscrape-api/internal/temporal"
	"github.com/stanstork/mapscrape-api/internal/temporal/workflows"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// WorkflowClient is the part of the Temporal client the handlers use.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tc.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tc.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	GetWorkflow(ctx context.Context, workflowID string, runID string) tc.WorkflowRun
}

type ScrapeHandler struct {
	runner    *batch.Runner
	workflows WorkflowClient
	logger    zerolog.Logger
}

func NewScrapeHandler(runner *batch.Runner, workflows WorkflowClient, logger zerolog.Logger) *ScrapeHandler {
	return &ScrapeHandler{
		runner:    runner,
		workflows: workflows,
		logger:    logger.With().Str("component", "scrape_handler").Logger(),
	}
}

type scrapeRequest struct {
	Rows           []models.Row `json:"rows"`
	ContinueOnFail bool         `json:"continue_on_fail"`
	AuthMethod     string       `json:"auth_method"`
	AIToolCall     bool         `json:"ai_tool_call"`
}

type scrapeResponse struct {
	BatchID string                `json:"batch_id"`
	Records []models.OutputRecord `json:"records"`
	Error   string                `json:"error,omitempty"`
	Row     *int                  `json:"row,omitempty"`
}

func decodeScrapeRequest(r *http.Request) (scrapeRequest, actor.AuthMethod, error) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "", errors.New("Invalid request payload")
	}
	if len(req.Rows) == 0 {
		return req, "", errors.New("At least one input row is required")
	}
	method, err := actor.ParseAuthMethod(req.AuthMethod)
	if err != nil {
		return req, "", err
	}
	return req, method, nil
}

// RunScrape executes a batch synchronously and returns its records.
func (h *ScrapeHandler) RunScrape(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}
	req, method, err := decodeScrapeRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b := batch.Batch{
		ID:             uuid.NewString(),
		TenantID:       tid,
		Rows:           req.Rows,
		ContinueOnFail: req.ContinueOnFail,
		Call:           actor.CallOptions{AuthMethod: method, AIToolCall: req.AIToolCall},
	}
	records, err := h.runner.Run(r.Context(), b)
	if records == nil {
		records = []models.OutputRecord{}
	}
	resp := scrapeResponse{BatchID: b.ID, Records: records}
	status := http.StatusOK
	if err != nil {
		h.logger.Error().Err(err).Str("batch", b.ID).Msg("Scrape batch aborted")
		resp.Error = err.Error()
		var rowErr *batch.RowError
		if errors.As(err, &rowErr) {
			resp.Row = &rowErr.Index
		}
		status = statusForError(err)
	}

	writeJSON(w, status, resp)
}

// StartScrape hands a batch to the Temporal worker and returns immediately.
func (h *ScrapeHandler) StartScrape(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}
	req, method, err := decodeScrapeRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := temporal.BatchParams{
		BatchID:        uuid.NewString(),
		TenantID:       tid,
		Rows:           req.Rows,
		ContinueOnFail: req.ContinueOnFail,
		AuthMethod:     string(method),
		AIToolCall:     req.AIToolCall,
	}
	run, err := h.workflows.ExecuteWorkflow(r.Context(), tc.StartWorkflowOptions{
		ID:        temporal.BatchWorkflowIDPrefix + params.BatchID,
		TaskQueue: temporal.TaskQueueName,
		Memo:      map[string]interface{}{tenantMemoKey: tid},
	}, workflows.ScrapeBatchWorkflow, params)
	if err != nil {
		h.logger.Error().Err(err).Str("batch", params.BatchID).Msg("Failed to start scrape workflow")
		http.Error(w, "Failed to start scrape: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"batch_id":    params.BatchID,
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}

// GetScrape reports the state of an asynchronous batch and, once it has
// completed, its result.
func (h *ScrapeHandler) GetScrape(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}
	workflowID := temporal.BatchWorkflowIDPrefix + mux.Vars(r)["batchID"]

	desc, err := h.workflows.DescribeWorkflowExecution(r.Context(), workflowID, "")
	if err != nil {
		http.Error(w, "Scrape not found: "+err.Error(), http.StatusNotFound)
		return
	}
	if tenantOf(desc) != tid {
		http.Error(w, "Scrape not found", http.StatusNotFound)
		return
	}
	status := desc.GetWorkflowExecutionInfo().GetStatus()
	body := map[string]any{"batch_id": mux.Vars(r)["batchID"], "status": workflowStatusName(status)}
	if status != enums.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		writeJSON(w, http.StatusOK, body)
		return
	}

	var result temporal.BatchResult
	if err := h.workflows.GetWorkflow(r.Context(), workflowID, "").Get(r.Context(), &result); err != nil {
		http.Error(w, "Failed to load scrape result: "+err.Error(), http.StatusInternalServerError)
		return
	}
	body["result"] = result
	writeJSON(w, http.StatusOK, body)
}

const tenantMemoKey = "tenant_id"

func tenantOf(desc *workflowservice.DescribeWorkflowExecutionResponse) string {
	payload, ok := desc.GetWorkflowExecutionInfo().GetMemo().GetFields()[tenantMemoKey]
	if !ok {
		return ""
	}
	var tid string
	if err := converter.GetDefaultDataConverter().FromPayload(payload, &tid); err != nil {
		return ""
	}
	return tid
}

func workflowStatusName(s enums.WorkflowExecutionStatus) string {
	switch s {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "running"
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "completed"
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "failed"
	case enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "canceled"
	case enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "terminated"
	case enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "timed_out"
	}
	return "unknown"
}

// statusForError separates bad caller input from remote service failures.
func statusForError(err error) int {
	var fieldErr *normalizer.FieldError
	var opErr *actor.OperationError
	var apiErr *actor.APIError
	switch {
	case errors.As(err, &fieldErr), errors.As(err, &opErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
