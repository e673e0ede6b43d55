// Package ingest orchestrates one ingestion run: fan out to the source
// adapters, archive the fetched items, and synthesize risk alerts from the
// items that survive near-duplicate filtering. All writes for a run share
// one transaction, so a failed run leaves no partial state.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/dedup"
	"github.com/linnemanlabs/beacon/internal/enrich"
	"github.com/linnemanlabs/beacon/internal/news"
	"github.com/linnemanlabs/beacon/internal/source"
)

// Defaults applied by NewService when Options leaves a field zero.
const (
	DefaultFetchLimit = 50
	DefaultLookback   = 72 * time.Hour
)

// Options tunes one Service. Zero values fall back to package defaults.
type Options struct {
	// FetchLimit is the per-source record cap passed to each adapter.
	FetchLimit int

	// DedupThreshold and DedupDimensions configure the near-duplicate
	// index; see the dedup package for their defaults.
	DedupThreshold  float64
	DedupDimensions int

	// Lookback bounds how far back recently created alerts seed the
	// near-duplicate index.
	Lookback time.Duration
}

// Notifier receives each alert created by a committed run. Implementations
// decide which alerts are worth forwarding.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert *Alert) error
}

// Service is the business boundary for ingestion runs.
type Service struct {
	store    Store
	adapters []source.Adapter
	chain    *enrich.Chain
	notifier Notifier
	metrics  *Metrics
	logger   log.Logger
	opts     Options

	mu   sync.Mutex
	last *RunStats
}

// NewService creates an ingestion service. notifier and metrics may be nil.
func NewService(store Store, adapters []source.Adapter, chain *enrich.Chain, notifier Notifier, metrics *Metrics, opts Options, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	return &Service{
		store:    store,
		adapters: adapters,
		chain:    chain,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes one full ingestion pass and returns its stats. Fetching
// happens outside the transaction; archiving and alert creation happen
// inside one, so any persistence error rolls the whole run back.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now().UTC()

	items, counts, fetchErrs := s.FetchAllSources(ctx)
	stats := &RunStats{
		StartedAt:    start,
		ItemsFetched: len(items),
		SourceCounts: counts,
		SourceErrors: fetchErrs,
	}

	var created []*Alert
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		stored, err := s.StoreRawItems(ctx, tx, items, start)
		if err != nil {
			return err
		}
		stats.ItemsStored = stored

		alerts, skipped, err := s.CreateAlertsFromItems(ctx, tx, items, start)
		if err != nil {
			return err
		}
		created = alerts
		stats.AlertsCreated = len(alerts)
		stats.DuplicatesSkipped = skipped
		return nil
	})
	stats.FinishedAt = time.Now().UTC()

	if s.metrics != nil {
		s.metrics.observeRun(stats, err)
	}
	if err != nil {
		s.logger.Error(ctx, err, "ingestion run failed, rolled back",
			"items_fetched", stats.ItemsFetched,
		)
		return nil, fmt.Errorf("ingestion run: %w", err)
	}

	s.notifyCreated(ctx, created)

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	s.logger.Info(ctx, "ingestion run complete",
		"items_fetched", stats.ItemsFetched,
		"items_stored", stats.ItemsStored,
		"alerts_created", stats.AlertsCreated,
		"duplicates_skipped", stats.DuplicatesSkipped,
		"duration", stats.FinishedAt.Sub(stats.StartedAt),
	)
	return stats, nil
}

// LastRun returns a copy of the most recent successful run's stats, or nil
// when no run has completed yet.
func (s *Service) LastRun() *RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// FetchAllSources queries every adapter concurrently and merges the results
// in adapter order, dropping exact duplicates on the case-insensitive
// (source, url) key, first occurrence wins. A failing adapter contributes
// zero items and an entry in the returned error map; it never fails the
// fetch.
func (s *Service) FetchAllSources(ctx context.Context) ([]news.Item, map[string]int, map[string]string) {
	results := make([][]news.Item, len(s.adapters))
	errs := make([]error, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()
			results[i], errs[i] = adapter.FetchRecent(ctx, s.opts.FetchLimit)
		}(i, adapter)
	}
	wg.Wait()

	counts := make(map[string]int)
	fetchErrs := make(map[string]string)
	seen := make(map[string]struct{})
	var merged []news.Item

	for i, adapter := range s.adapters {
		name := adapter.Name()
		if errs[i] != nil {
			s.logger.Error(ctx, errs[i], "source fetch failed", "source", name)
			fetchErrs[name] = errs[i].Error()
			if s.metrics != nil {
				s.metrics.SourceErrors.WithLabelValues(name).Inc()
			}
			continue
		}
		for _, it := range results[i] {
			key := it.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, it)
			counts[name]++
		}
		if s.metrics != nil {
			s.metrics.ItemsFetched.WithLabelValues(name).Add(float64(counts[name]))
		}
	}
	return merged, counts, fetchErrs
}

// StoreRawItems archives the fetched items. Items missing a title or url
// are dropped; the rest are upserted on (source, url). Returns the number
// of items written.
func (s *Service) StoreRawItems(ctx context.Context, tx Tx, items []news.Item, fetchedAt time.Time) (int, error) {
	stored := 0
	for i := range items {
		it := &items[i]
		if !it.Valid() {
			continue
		}
		if err := tx.UpsertRawItem(ctx, newRawItem(it, fetchedAt)); err != nil {
			return 0, fmt.Errorf("upsert raw item %q: %w", it.URL, err)
		}
		stored++
	}
	return stored, nil
}

// CreateAlertsFromItems runs near-duplicate filtering and enrichment over
// the items and inserts an alert for each accepted one. The duplicate index
// is seeded with alerts created within the lookback window, and each
// accepted item is registered before the next is checked, so duplicates
// within the batch are caught too. Returns the created alerts and the
// number of items skipped as duplicates.
func (s *Service) CreateAlertsFromItems(ctx context.Context, tx Tx, items []news.Item, now time.Time) ([]*Alert, int, error) {
	texts, err := tx.RecentAlertTexts(ctx, now.Add(-s.opts.Lookback))
	if err != nil {
		return nil, 0, fmt.Errorf("load recent alert texts: %w", err)
	}

	index := dedup.NewIndex(s.opts.DedupThreshold, s.opts.DedupDimensions)
	index.Seed(texts)

	var created []*Alert
	skipped := 0
	for i := range items {
		it := &items[i]
		if !it.Valid() {
			continue
		}

		sim := index.CheckItem(it)
		if sim.Duplicate {
			skipped++
			s.logger.Info(ctx, "skipping near-duplicate item",
				"source", it.Source,
				"title", it.Title,
				"similarity", sim.Score,
			)
			if s.metrics != nil {
				s.metrics.DuplicatesSkipped.Inc()
			}
			continue
		}

		res := s.chain.Run(ctx, it)
		al := newAlert(ulid.Make().String(), it, res, now)
		if err := tx.InsertAlert(ctx, al); err != nil {
			return nil, 0, fmt.Errorf("insert alert for %q: %w", it.URL, err)
		}
		index.Register(it, res.Summary.Text)
		created = append(created, al)

		if s.metrics != nil {
			s.metrics.AlertsCreated.WithLabelValues(string(al.Category)).Inc()
			s.metrics.observeOutcomes(res)
		}
	}
	return created, skipped, nil
}

// notifyCreated forwards committed alerts to the notifier. Delivery
// failures are logged and never affect the run result.
func (s *Service) notifyCreated(ctx context.Context, created []*Alert) {
	if s.notifier == nil {
		return
	}
	for _, al := range created {
		if err := s.notifier.NotifyAlert(ctx, al); err != nil {
			s.logger.Error(ctx, err, "alert notification failed", "alert_id", al.ID)
		}
	}
}
