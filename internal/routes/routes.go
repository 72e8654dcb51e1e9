package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/mapscrape-api/internal/authz"
	"github.com/stanstork/mapscrape-api/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(auth *handlers.AuthHandler, scrapes *handlers.ScrapeHandler, runs *handlers.RunHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/metadata/options", handlers.ListOptions).Methods(http.MethodGet)

	api.Handle("/scrapes", authz.RequireScopeHandler(authz.ScopeScrapesWrite, scrapes.RunScrape)).Methods(http.MethodPost)
	api.Handle("/scrapes/async", authz.RequireScopeHandler(authz.ScopeScrapesWrite, scrapes.StartScrape)).Methods(http.MethodPost)
	api.Handle("/scrapes/{batchID}", authz.RequireScopeHandler(authz.ScopeRunsRead, scrapes.GetScrape)).Methods(http.MethodGet)
	api.Handle("/scrapes/{batchID}/runs", authz.RequireScopeHandler(authz.ScopeRunsRead, runs.ListBatchRuns)).Methods(http.MethodGet)

	api.Handle("/runs", authz.RequireScopeHandler(authz.ScopeRunsRead, runs.ListRuns)).Methods(http.MethodGet)
	api.Handle("/runs/stats", authz.RequireScopeHandler(authz.ScopeRunsRead, runs.GetRunStats)).Methods(http.MethodGet)
	api.Handle("/runs/{runID}", authz.RequireScopeHandler(authz.ScopeRunsRead, runs.GetRun)).Methods(http.MethodGet)

	return router
}
