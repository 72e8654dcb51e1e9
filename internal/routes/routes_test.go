package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/authz"
	"github.com/stanstork/mapscrape-api/internal/handlers"
	"github.com/stanstork/mapscrape-api/internal/models"
	"github.com/stanstork/mapscrape-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type fakeRuns struct {
	tenant        string
	limit, offset int
	days          int
	records       map[string]models.RunRecord
}

func (f *fakeRuns) Create(_ context.Context, rec models.RunRecord) (models.RunRecord, error) {
	return rec, nil
}

func (f *fakeRuns) Complete(context.Context, models.RunRecord) error { return nil }

func (f *fakeRuns) Get(_ context.Context, tenantID, id string) (models.RunRecord, error) {
	rec, ok := f.records[id]
	if !ok || rec.TenantID != tenantID {
		return models.RunRecord{}, repository.ErrRunRecordNotFound
	}
	return rec, nil
}

func (f *fakeRuns) ListByBatch(_ context.Context, tenantID, batchID string) ([]models.RunRecord, error) {
	f.tenant = tenantID
	var out []models.RunRecord
	for _, rec := range f.records {
		if rec.BatchID == batchID && rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRuns) List(_ context.Context, tenantID string, limit, offset int) ([]models.RunRecord, error) {
	f.tenant, f.limit, f.offset = tenantID, limit, offset
	return []models.RunRecord{}, nil
}

func (f *fakeRuns) Stats(_ context.Context, tenantID string, days int) (models.RunStat, error) {
	f.tenant, f.days = tenantID, days
	return models.RunStat{Total: 3, Succeeded: 2, Failed: 1}, nil
}

func token(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func newTestRouter(runs *fakeRuns) http.Handler {
	logger := zerolog.Nop()
	return NewRouter(
		handlers.NewAuthHandler(secret, logger),
		handlers.NewScrapeHandler(nil, nil, logger),
		handlers.NewRunHandler(runs, logger),
	)
}

func serve(router http.Handler, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthIsPublic(t *testing.T) {
	rr := serve(newTestRouter(&fakeRuns{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAPIRequiresValidToken(t *testing.T) {
	router := newTestRouter(&fakeRuns{})
	cases := map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"wrong secret": token(t, "other", jwt.MapClaims{"tid": "t1"}),
		"expired":      token(t, secret, jwt.MapClaims{"tid": "t1", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no tenant":    token(t, secret, jwt.MapClaims{"sub": "u1"}),
	}
	for name, bearer := range cases {
		t.Run(name, func(t *testing.T) {
			rr := serve(router, http.MethodGet, "/api/runs", bearer)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAPIEnforcesScopes(t *testing.T) {
	router := newTestRouter(&fakeRuns{})
	bearer := token(t, secret, jwt.MapClaims{"tid": "t1", "scope": authz.ScopeRunsRead})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/runs", bearer).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/scrapes", bearer).Code)
}

func TestListRuns_UsesTenantAndPaging(t *testing.T) {
	runs := &fakeRuns{}
	bearer := token(t, secret, jwt.MapClaims{"tid": "t1", "scopes": []string{authz.ScopeRunsRead}})

	rr := serve(newTestRouter(runs), http.MethodGet, "/api/runs?limit=5&offset=10", bearer)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t1", runs.tenant)
	assert.Equal(t, 5, runs.limit)
	assert.Equal(t, 10, runs.offset)
}

func TestRunStats_DefaultWindow(t *testing.T) {
	runs := &fakeRuns{}
	bearer := token(t, secret, jwt.MapClaims{"tid": "t1", "scope": authz.ScopeRunsRead})

	rr := serve(newTestRouter(runs), http.MethodGet, "/api/runs/stats", bearer)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 31, runs.days)
	var stat models.RunStat
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stat))
	assert.Equal(t, 3, stat.Total)
}

func TestGetRun_OtherTenantIsNotFound(t *testing.T) {
	runs := &fakeRuns{records: map[string]models.RunRecord{
		"r1": {ID: "r1", TenantID: "t2", BatchID: "b1"},
	}}
	bearer := token(t, secret, jwt.MapClaims{"tid": "t1", "scope": authz.ScopeRunsRead})

	rr := serve(newTestRouter(runs), http.MethodGet, "/api/runs/r1", bearer)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListBatchRuns(t *testing.T) {
	runs := &fakeRuns{records: map[string]models.RunRecord{
		"r1": {ID: "r1", TenantID: "t1", BatchID: "b1"},
		"r2": {ID: "r2", TenantID: "t1", BatchID: "b2"},
	}}
	bearer := token(t, secret, jwt.MapClaims{"tid": "t1", "scope": authz.ScopeRunsRead})

	rr := serve(newTestRouter(runs), http.MethodGet, "/api/scrapes/b1/runs", bearer)

	require.Equal(t, http.StatusOK, rr.Code)
	var recs []models.RunRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].ID)
}

func TestListOptions(t *testing.T) {
	bearer := token(t, secret, jwt.MapClaims{"tid": "t1"})

	rr := serve(newTestRouter(&fakeRuns{}), http.MethodGet, "/api/metadata/options", bearer)

	require.Equal(t, http.StatusOK, rr.Code)
	var opts []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &opts))
	names := make(map[string]map[string]any, len(opts))
	for _, o := range opts {
		names[o["name"].(string)] = o
	}
	require.Contains(t, names, "locationQuery")
	assert.Equal(t, "string", names["locationQuery"]["type"])
	require.Contains(t, names, "customGeolocation")
	assert.NotContains(t, names["customGeolocation"], "type")
}
