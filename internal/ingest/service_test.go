package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/enrich"
	"github.com/linnemanlabs/beacon/internal/ingest"
	"github.com/linnemanlabs/beacon/internal/ingest/memstore"
	"github.com/linnemanlabs/beacon/internal/llm"
	"github.com/linnemanlabs/beacon/internal/news"
	"github.com/linnemanlabs/beacon/internal/source"
)

type fakeAdapter struct {
	name  string
	items []news.Item
	err   error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchRecent(context.Context, int) ([]news.Item, error) {
	return f.items, f.err
}

type recordingNotifier struct {
	alerts []*ingest.Alert
}

func (n *recordingNotifier) NotifyAlert(_ context.Context, al *ingest.Alert) error {
	n.alerts = append(n.alerts, al)
	return nil
}

func newService(store ingest.Store, notifier ingest.Notifier, adapters ...source.Adapter) *ingest.Service {
	chain := enrich.NewChain(llm.Disabled{}, log.Nop(), 0)
	return ingest.NewService(store, adapters, chain, notifier, nil, ingest.Options{}, log.Nop())
}

func tp(t time.Time) *time.Time { return &t }

// quakeItems returns three items: an earthquake report, a near-duplicate of
// it from a second source, and an unrelated protest report.
func quakeItems(published time.Time) (quake, quakeDup, protest news.Item) {
	quake = news.Item{
		Source:      "usgs",
		Title:       "Massive earthquake strikes Osaka region",
		URL:         "https://usgs.example/eq-osaka",
		Description: "A massive earthquake struck the Osaka region, forcing residents to evacuate coastal areas.",
		PublishedAt: tp(published),
		Country:     "Japan",
		Region:      "Osaka",
	}
	quakeDup = news.Item{
		Source:      "gdelt",
		Title:       "Massive earthquake strikes Osaka region residents evacuate",
		URL:         "https://ex.com/osaka-quake",
		Description: "Massive earthquake struck the Osaka region forcing residents to evacuate coastal areas.",
		PublishedAt: tp(published),
		Country:     "Japan",
		Region:      "Osaka",
	}
	protest = news.Item{
		Source:      "newsapi",
		Title:       "Protest turns violent in Bangkok",
		URL:         "https://r.com/bangkok-protest",
		Description: "Demonstrators clash with police as a protest escalates near the capital, with a curfew announced.",
		PublishedAt: tp(published),
		Country:     "Thailand",
	}
	return quake, quakeDup, protest
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	quake, quakeDup, protest := quakeItems(time.Now().UTC())
	store := memstore.New()
	notifier := &recordingNotifier{}
	svc := newService(store, notifier,
		&fakeAdapter{name: "usgs", items: []news.Item{quake}},
		&fakeAdapter{name: "gdelt", items: []news.Item{quakeDup}},
		&fakeAdapter{name: "newsapi", items: []news.Item{protest}},
	)

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.ItemsFetched != 3 {
		t.Errorf("ItemsFetched = %d, want 3", stats.ItemsFetched)
	}
	if stats.ItemsStored != 3 {
		t.Errorf("ItemsStored = %d, want 3", stats.ItemsStored)
	}
	if stats.AlertsCreated != 2 {
		t.Errorf("AlertsCreated = %d, want 2", stats.AlertsCreated)
	}
	if stats.DuplicatesSkipped != 1 {
		t.Errorf("DuplicatesSkipped = %d, want 1", stats.DuplicatesSkipped)
	}

	alerts := store.Alerts()
	if len(alerts) != 2 {
		t.Fatalf("stored alerts = %d, want 2", len(alerts))
	}

	eq := alerts[0]
	if eq.Category != enrich.CategoryNaturalDisaster {
		t.Errorf("quake category = %q, want natural_disaster", eq.Category)
	}
	if eq.Country != "Japan" {
		t.Errorf("quake country = %q, want Japan", eq.Country)
	}
	if eq.Severity != 4 {
		t.Errorf("quake severity = %d, want 4", eq.Severity)
	}
	if !eq.Verified || eq.VerificationScore != 0.85 {
		t.Errorf("quake verification = (%t, %v), want (true, 0.85)", eq.Verified, eq.VerificationScore)
	}
	if eq.ID == "" {
		t.Error("quake alert missing ID")
	}
	if !strings.Contains(eq.Summary, "natural disaster") {
		t.Errorf("quake summary = %q, want category mention", eq.Summary)
	}

	pr := alerts[1]
	if pr.Category != enrich.CategoryCivilUnrest {
		t.Errorf("protest category = %q, want civil_unrest", pr.Category)
	}
	if pr.Country != "Thailand" {
		t.Errorf("protest country = %q, want Thailand", pr.Country)
	}

	if len(notifier.alerts) != 2 {
		t.Errorf("notified alerts = %d, want 2", len(notifier.alerts))
	}

	last := svc.LastRun()
	if last == nil || last.AlertsCreated != 2 {
		t.Errorf("LastRun = %+v, want the completed run's stats", last)
	}
}

func TestRunReIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	quake, quakeDup, protest := quakeItems(time.Now().UTC())
	store := memstore.New()
	svc := newService(store, nil,
		&fakeAdapter{name: "usgs", items: []news.Item{quake}},
		&fakeAdapter{name: "gdelt", items: []news.Item{quakeDup}},
		&fakeAdapter{name: "newsapi", items: []news.Item{protest}},
	)
	ctx := context.Background()

	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	stats, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	// Raw items upsert in place; alerts from the first run seed the
	// duplicate index, so the second run creates nothing new.
	if n := len(store.Items()); n != 3 {
		t.Errorf("raw items after re-ingest = %d, want 3", n)
	}
	if stats.AlertsCreated != 0 {
		t.Errorf("AlertsCreated on re-ingest = %d, want 0", stats.AlertsCreated)
	}
	if stats.DuplicatesSkipped != 3 {
		t.Errorf("DuplicatesSkipped on re-ingest = %d, want 3", stats.DuplicatesSkipped)
	}
	if n := len(store.Alerts()); n != 2 {
		t.Errorf("alerts after re-ingest = %d, want 2", n)
	}
}

func TestFetchAllSourcesExactDedup(t *testing.T) {
	t.Parallel()

	a := news.Item{Source: "Reuters", Title: "Story", URL: "https://r.com/story"}
	// Same (source, url) key differing only in case.
	b := news.Item{Source: "reuters", Title: "Story again", URL: "HTTPS://R.COM/story"}
	c := news.Item{Source: "Reuters", Title: "Other story", URL: "https://r.com/other"}

	svc := newService(memstore.New(), nil,
		&fakeAdapter{name: "first", items: []news.Item{a}},
		&fakeAdapter{name: "second", items: []news.Item{b, c}},
	)

	items, counts, fetchErrs := svc.FetchAllSources(context.Background())
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	// First occurrence wins.
	if items[0].Title != "Story" || items[1].Title != "Other story" {
		t.Errorf("merged titles = %q, %q", items[0].Title, items[1].Title)
	}
	if counts["first"] != 1 || counts["second"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if len(fetchErrs) != 0 {
		t.Errorf("fetchErrs = %v, want none", fetchErrs)
	}
}

func TestFetchAllSourcesIsolatesFailures(t *testing.T) {
	t.Parallel()

	ok := news.Item{Source: "usgs", Title: "Quake", URL: "https://usgs.example/q"}
	svc := newService(memstore.New(), nil,
		&fakeAdapter{name: "gdelt", err: errors.New("upstream 502")},
		&fakeAdapter{name: "usgs", items: []news.Item{ok}},
	)

	items, counts, fetchErrs := svc.FetchAllSources(context.Background())
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1 despite a failing source", len(items))
	}
	if counts["usgs"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if fetchErrs["gdelt"] == "" {
		t.Error("expected gdelt fetch error to be recorded")
	}
}

func TestRunRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	quake, _, _ := quakeItems(time.Now().UTC())
	mem := memstore.New()
	store := &insertFailStore{inner: mem}
	svc := newService(store, nil, &fakeAdapter{name: "usgs", items: []news.Item{quake}})

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail when alert insert fails")
	}

	// The whole run rolled back: no raw items, no alerts.
	if n := len(mem.Items()); n != 0 {
		t.Errorf("raw items after failed run = %d, want 0", n)
	}
	if n := len(mem.Alerts()); n != 0 {
		t.Errorf("alerts after failed run = %d, want 0", n)
	}
	if svc.LastRun() != nil {
		t.Error("LastRun should stay nil after a failed run")
	}
}

func TestStoreRawItemsDropsInvalid(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := newService(store, nil)
	items := []news.Item{
		{Source: "usgs", Title: "Quake", URL: "https://usgs.example/q"},
		{Source: "usgs", Title: "", URL: "https://usgs.example/untitled"},
		{Source: "usgs", Title: "No link"},
	}

	var stored int
	err := store.InTx(context.Background(), func(ctx context.Context, tx ingest.Tx) error {
		var err error
		stored, err = svc.StoreRawItems(ctx, tx, items, time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("StoreRawItems: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1", stored)
	}
}

// insertFailStore delegates to the in-memory store but fails every alert
// insert, exercising the run-level rollback path.
type insertFailStore struct {
	inner *memstore.Store
}

func (s *insertFailStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ingest.Tx) error) error {
	return s.inner.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
		return fn(ctx, &insertFailTx{Tx: tx})
	})
}

type insertFailTx struct {
	ingest.Tx
}

func (t *insertFailTx) InsertAlert(context.Context, *ingest.Alert) error {
	return errors.New("insert alert: connection reset")
}
