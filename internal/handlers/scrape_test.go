package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/actor"
	"github.com/stanstork/mapscrape-api/internal/authz"
	"github.com/stanstork/mapscrape-api/internal/batch"
	"github.com/stanstork/mapscrape-api/internal/executor"
	"github.com/stanstork/mapscrape-api/internal/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/mocks"
)

// actorService fakes the remote actor API. Runs finish on the second poll.
func actorService(t *testing.T, status string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	polls := map[string]int{}
	m := http.NewServeMux()
	m.HandleFunc("GET /acts/{actor}/builds/default", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"actorDefinition":{"input":{"properties":{"language":{"type":"string","default":"en"}}}}}}`))
	})
	m.HandleFunc("POST /acts/{actor}/runs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"run-1","status":"READY","defaultDatasetId":"ds-1"}}`))
	})
	m.HandleFunc("GET /actor-runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls[r.PathValue("id")]++
		n := polls[r.PathValue("id")]
		mu.Unlock()
		s := "RUNNING"
		if n > 1 {
			s = status
		}
		w.Write([]byte(`{"data":{"id":"run-1","status":"` + s + `","defaultDatasetId":"ds-1"}}`))
	})
	m.HandleFunc("GET /datasets/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"Tatte Bakery"},{"title":"Flour Bakery"}]`))
	})
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRunner(srv *httptest.Server, creds actor.Credentials) *batch.Runner {
	cfg := actor.DefaultConfig()
	cfg.BaseURL = srv.URL
	client := actor.NewClient(cfg, creds, actor.WithHTTPClient(srv.Client()))
	executorFor := func(call actor.CallOptions) batch.Executor {
		return executor.New(client.WithCall(call), zerolog.Nop(), executor.WithPollInterval(time.Millisecond))
	}
	return batch.NewRunner(client.ActorID(), executorFor, nil, zerolog.Nop())
}

func tenantRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := authz.WithIdentity(req.Context(), "tenant-1", "user-1", []string{authz.ScopeScrapesWrite, authz.ScopeRunsRead})
	return req.WithContext(ctx)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) scrapeResponse {
	t.Helper()
	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestRunScrape_ReturnsRecordsPerRow(t *testing.T) {
	h := NewScrapeHandler(newTestRunner(actorService(t, "SUCCEEDED"), actor.Credentials{APIToken: "t"}), nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.RunScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes",
		`{"rows":[{"locationQuery":"Boston, USA"},{"locationQuery":"Austin, USA"}]}`))

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.Records, 4)
	assert.Equal(t, 0, resp.Records[0].PairedItem.Item)
	assert.Equal(t, 1, resp.Records[3].PairedItem.Item)
	assert.Equal(t, "Tatte Bakery", resp.Records[0].JSON["title"])
}

func TestRunScrape_FieldErrorIsBadRequest(t *testing.T) {
	h := NewScrapeHandler(newTestRunner(actorService(t, "SUCCEEDED"), actor.Credentials{APIToken: "t"}), nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.RunScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes",
		`{"rows":[{"locationQuery":"Boston, USA"},{"maxReviews":"many"}]}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Contains(t, resp.Error, "maxReviews")
	require.NotNil(t, resp.Row)
	assert.Equal(t, 1, *resp.Row)
	assert.Len(t, resp.Records, 2, "records of the first row are kept")
}

func TestRunScrape_ContinueOnFailEmitsErrorRecord(t *testing.T) {
	h := NewScrapeHandler(newTestRunner(actorService(t, "SUCCEEDED"), actor.Credentials{APIToken: "t"}), nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.RunScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes",
		`{"continue_on_fail":true,"rows":[{"maxReviews":"many"},{"locationQuery":"Boston, USA"}]}`))

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	require.Len(t, resp.Records, 3)
	assert.True(t, resp.Records[0].IsError())
	assert.Equal(t, 0, resp.Records[0].PairedItem.Item)
	assert.Empty(t, resp.Error)
}

func TestRunScrape_MissingCredentialsIsBadRequest(t *testing.T) {
	h := NewScrapeHandler(newTestRunner(actorService(t, "SUCCEEDED"), actor.Credentials{}), nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.RunScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes",
		`{"auth_method":"oAuth2","rows":[{"locationQuery":"Boston, USA"}]}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Error, "OAuth2")
}

func TestRunScrape_RemoteFailureIsBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"token-not-valid","message":"User was not found or authentication token is not valid"}}`))
	}))
	defer srv.Close()
	h := NewScrapeHandler(newTestRunner(srv, actor.Credentials{APIToken: "bad"}), nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.RunScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes", `{"rows":[{"locationQuery":"Boston"}]}`))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRunScrape_RejectsBadPayloads(t *testing.T) {
	h := NewScrapeHandler(nil, nil, zerolog.Nop())
	for name, body := range map[string]string{
		"not json":     `{`,
		"no rows":      `{"rows":[]}`,
		"unknown auth": `{"auth_method":"basic","rows":[{}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.RunScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes", body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestRunScrape_RequiresTenant(t *testing.T) {
	h := NewScrapeHandler(nil, nil, zerolog.Nop())
	rr := httptest.NewRecorder()
	h.RunScrape(rr, httptest.NewRequest(http.MethodPost, "/api/scrapes", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

type fakeWorkflows struct {
	options tc.StartWorkflowOptions
	params  temporal.BatchParams
	desc    *workflowservice.DescribeWorkflowExecutionResponse
	run     *mocks.WorkflowRun
}

func (f *fakeWorkflows) ExecuteWorkflow(_ context.Context, options tc.StartWorkflowOptions, _ interface{}, args ...interface{}) (tc.WorkflowRun, error) {
	f.options = options
	f.params = args[0].(temporal.BatchParams)
	return f.run, nil
}

func (f *fakeWorkflows) DescribeWorkflowExecution(context.Context, string, string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	return f.desc, nil
}

func (f *fakeWorkflows) GetWorkflow(context.Context, string, string) tc.WorkflowRun {
	return f.run
}

func describeFor(t *testing.T, tenantID string, status enums.WorkflowExecutionStatus) *workflowservice.DescribeWorkflowExecutionResponse {
	t.Helper()
	payload, err := converter.GetDefaultDataConverter().ToPayload(tenantID)
	require.NoError(t, err)
	return &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
			Status: status,
			Memo:   &commonpb.Memo{Fields: map[string]*commonpb.Payload{tenantMemoKey: payload}},
		},
	}
}

func TestStartScrape_StartsWorkflow(t *testing.T) {
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("mapscrape-batch-x")
	run.On("GetRunID").Return("r-1")
	wf := &fakeWorkflows{run: run}
	h := NewScrapeHandler(nil, wf, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.StartScrape(rr, tenantRequest(http.MethodPost, "/api/scrapes/async",
		`{"continue_on_fail":true,"ai_tool_call":true,"rows":[{"locationQuery":"Boston"}]}`))

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, temporal.TaskQueueName, wf.options.TaskQueue)
	assert.Equal(t, temporal.BatchWorkflowIDPrefix+wf.params.BatchID, wf.options.ID)
	assert.Equal(t, "tenant-1", wf.options.Memo[tenantMemoKey])
	assert.Equal(t, "tenant-1", wf.params.TenantID)
	assert.True(t, wf.params.ContinueOnFail)
	assert.True(t, wf.params.AIToolCall)
	assert.Equal(t, string(actor.AuthAPIKey), wf.params.AuthMethod)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, wf.params.BatchID, body["batch_id"])
	assert.Equal(t, "r-1", body["run_id"])
}

func getScrape(h *ScrapeHandler, batchID string) *httptest.ResponseRecorder {
	req := tenantRequest(http.MethodGet, "/api/scrapes/"+batchID, "")
	req = mux.SetURLVars(req, map[string]string{"batchID": batchID})
	rr := httptest.NewRecorder()
	h.GetScrape(rr, req)
	return rr
}

func TestGetScrape_Running(t *testing.T) {
	wf := &fakeWorkflows{desc: describeFor(t, "tenant-1", enums.WORKFLOW_EXECUTION_STATUS_RUNNING)}
	rr := getScrape(NewScrapeHandler(nil, wf, zerolog.Nop()), "b-1")

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "running", body["status"])
	assert.NotContains(t, body, "result")
}

func TestGetScrape_CompletedIncludesResult(t *testing.T) {
	run := &mocks.WorkflowRun{}
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		res := args.Get(1).(*temporal.BatchResult)
		res.BatchID = "b-1"
		res.Aborted = true
		res.Error = "boom"
	}).Return(nil)
	wf := &fakeWorkflows{desc: describeFor(t, "tenant-1", enums.WORKFLOW_EXECUTION_STATUS_COMPLETED), run: run}

	rr := getScrape(NewScrapeHandler(nil, wf, zerolog.Nop()), "b-1")

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status string               `json:"status"`
		Result temporal.BatchResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "completed", body.Status)
	assert.True(t, body.Result.Aborted)
	assert.Equal(t, "boom", body.Result.Error)
}

func TestGetScrape_OtherTenantIsNotFound(t *testing.T) {
	wf := &fakeWorkflows{desc: describeFor(t, "tenant-2", enums.WORKFLOW_EXECUTION_STATUS_RUNNING)}
	rr := getScrape(NewScrapeHandler(nil, wf, zerolog.Nop()), "b-1")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
