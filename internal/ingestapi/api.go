// Package ingestapi exposes the ingestion service over HTTP: a trigger
// endpoint for running an ingestion pass and a read endpoint for the last
// completed run's stats.
package ingestapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/beacon/internal/ingest"
)

// Runner defines the business operations ingestapi needs.
type Runner interface {
	Run(ctx context.Context) (*ingest.RunStats, error)
	LastRun() *ingest.RunStats
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     Runner
	running atomic.Bool
}

// New creates a new API handler.
func New(logger log.Logger, svc Runner) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("ingest service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/ingest", func(r chi.Router) {
		r.Post("/run", a.handleRun)
		r.Get("/last", a.handleLast)
	})
}

// handleRun executes one ingestion pass synchronously and returns its stats.
// Only one run is admitted at a time; concurrent triggers get 409.
func (a *API) handleRun(w http.ResponseWriter, r *http.Request) {
	if !a.running.CompareAndSwap(false, true) {
		http.Error(w, `{"error":"ingestion run already in progress"}`, http.StatusConflict)
		return
	}
	defer a.running.Store(false)

	stats, err := a.svc.Run(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "triggered ingestion run failed")
		http.Error(w, `{"error":"ingestion run failed"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("beacon.ingest.alerts_created", stats.AlertsCreated),
		attribute.Int("beacon.ingest.items_fetched", stats.ItemsFetched),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (a *API) handleLast(w http.ResponseWriter, r *http.Request) {
	stats := a.svc.LastRun()
	if stats == nil {
		http.Error(w, `{"error":"no completed run"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
