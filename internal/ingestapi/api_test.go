package ingestapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/ingest"
)

type stubRunner struct {
	mu    sync.Mutex
	stats *ingest.RunStats
	err   error
	last  *ingest.RunStats
	calls int
	block chan struct{} // when set, Run waits until closed
}

func (s *stubRunner) Run(context.Context) (*ingest.RunStats, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return s.stats, s.err
}

func (s *stubRunner) LastRun() *ingest.RunStats { return s.last }

func newTestRouter(t *testing.T, svc Runner) chi.Router {
	t.Helper()
	api := New(nil, svc)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, &stubRunner{})
	if api == nil || api.logger == nil {
		t.Fatal("New(nil, svc) must default the logger")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(log.Nop(), nil)
}

func TestHandleRun_ReturnsStats(t *testing.T) {
	t.Parallel()

	stats := &ingest.RunStats{
		StartedAt:     time.Now().UTC(),
		ItemsFetched:  3,
		ItemsStored:   3,
		AlertsCreated: 2,
	}
	r := newTestRouter(t, &stubRunner{stats: stats})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got ingest.RunStats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.AlertsCreated != 2 || got.ItemsFetched != 3 {
		t.Errorf("stats = %+v, want alerts_created=2 items_fetched=3", got)
	}
}

func TestHandleRun_Failure(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &stubRunner{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHandleRun_RejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	svc := &stubRunner{stats: &ingest.RunStats{}, block: block}
	r := newTestRouter(t, svc)

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	// Wait until the first run is inside the handler.
	for {
		svc.mu.Lock()
		started := svc.calls > 0
		svc.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("concurrent trigger = %d, want %d", rec.Code, http.StatusConflict)
	}

	close(block)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first trigger = %d, want %d", code, http.StatusOK)
	}
}

func TestHandleLast(t *testing.T) {
	t.Parallel()

	t.Run("no completed run", func(t *testing.T) {
		t.Parallel()
		r := newTestRouter(t, &stubRunner{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/ingest/last", http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("returns last stats", func(t *testing.T) {
		t.Parallel()
		r := newTestRouter(t, &stubRunner{last: &ingest.RunStats{AlertsCreated: 5}})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/ingest/last", http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var got ingest.RunStats
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if got.AlertsCreated != 5 {
			t.Errorf("alerts_created = %d, want 5", got.AlertsCreated)
		}
	})
}

func TestRegisterRoutes_Methods(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &stubRunner{stats: &ingest.RunStats{}, last: &ingest.RunStats{}})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodPost, "/api/v1/ingest/run", http.StatusOK},
		{http.MethodGet, "/api/v1/ingest/run", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/ingest/last", http.StatusOK},
		{http.MethodPost, "/api/v1/ingest/last", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/ingest", http.StatusNotFound},
		{http.MethodGet, "/api/v2/ingest/run", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tt.wantStatus {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
		}
	}
}
