// Package memstore provides an in-memory implementation of ingest.Store.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/ingest"
)

// Store holds raw items and alerts in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.Mutex
	items  map[string]*ingest.RawNewsItem // (source, url) key -> item
	alerts []*ingest.Alert
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items: make(map[string]*ingest.RawNewsItem),
	}
}

// InTx runs fn against a snapshot of the store. The snapshot replaces the
// live state only when fn returns nil; an error discards every write.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ingest.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		items:  make(map[string]*ingest.RawNewsItem, len(s.items)),
		alerts: make([]*ingest.Alert, len(s.alerts)),
	}
	for k, v := range s.items {
		t.items[k] = v
	}
	copy(t.alerts, s.alerts)

	if err := fn(ctx, t); err != nil {
		return err
	}

	s.items = t.items
	s.alerts = t.alerts
	return nil
}

// Items returns copies of all stored raw items.
func (s *Store) Items() []*ingest.RawNewsItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ingest.RawNewsItem, 0, len(s.items))
	for _, it := range s.items {
		cp := *it
		out = append(out, &cp)
	}
	return out
}

// Alerts returns copies of all stored alerts in insertion order.
func (s *Store) Alerts() []*ingest.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ingest.Alert, len(s.alerts))
	for i, al := range s.alerts {
		cp := *al
		out[i] = &cp
	}
	return out
}

type tx struct {
	items  map[string]*ingest.RawNewsItem
	alerts []*ingest.Alert
}

func (t *tx) UpsertRawItem(_ context.Context, item *ingest.RawNewsItem) error {
	cp := *item
	key := rawKey(item.Source, item.URL)
	if existing, ok := t.items[key]; ok {
		cp.ID = existing.ID
	} else {
		cp.ID = ulid.Make().String()
	}
	t.items[key] = &cp
	return nil
}

func (t *tx) InsertAlert(_ context.Context, alert *ingest.Alert) error {
	cp := *alert
	t.alerts = append(t.alerts, &cp)
	return nil
}

func (t *tx) RecentAlertTexts(_ context.Context, since time.Time) ([]string, error) {
	var texts []string
	for _, al := range t.alerts {
		if al.CreatedAt.Before(since) {
			continue
		}
		texts = append(texts, al.Text())
	}
	return texts, nil
}

func rawKey(source, url string) string {
	return strings.ToLower(strings.TrimSpace(source)) + "\x00" + strings.ToLower(strings.TrimSpace(url))
}
