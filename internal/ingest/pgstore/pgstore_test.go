package pgstore_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/ingest"
	"github.com/linnemanlabs/beacon/internal/ingest/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("BEACON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BEACON_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	s, err := pgstore.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestUpsertRawItemIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond).UTC()

	item := &ingest.RawNewsItem{
		Source:    "usgs",
		Title:     "M 6.5 - near Osaka, Japan",
		URL:       "https://ex.com/pgstore-upsert-eq1",
		Country:   "Japan",
		Payload:   map[string]any{"mag": 6.5},
		FetchedAt: now,
	}

	for i := 0; i < 2; i++ {
		if err := s.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
			return tx.UpsertRawItem(ctx, item)
		}); err != nil {
			t.Fatalf("InTx #%d: %v", i+1, err)
		}
	}

	// A cased variant of the same key must also land on the existing row.
	variant := *item
	variant.Source = "USGS"
	variant.Title = "M 6.5 - near Osaka, Japan (revised)"
	if err := s.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
		return tx.UpsertRawItem(ctx, &variant)
	}); err != nil {
		t.Fatalf("InTx cased variant: %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	sentinel := errors.New("boom")

	alertID := "pgstore-rollback-" + time.Now().Format("20060102150405.000")
	err := s.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
		if err := tx.InsertAlert(ctx, &ingest.Alert{
			ID:        alertID,
			Title:     "rollback marker",
			Summary:   "s",
			Category:  "natural_disaster",
			Severity:  3,
			Country:   "Unknown",
			Source:    "test",
			URL:       "https://ex.com/" + alertID,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("InTx error = %v, want sentinel", err)
	}

	// The rolled-back alert must not be visible to a later transaction.
	var texts []string
	if err := s.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
		var err error
		texts, err = tx.RecentAlertTexts(ctx, time.Now().UTC().Add(-time.Minute))
		return err
	}); err != nil {
		t.Fatalf("RecentAlertTexts: %v", err)
	}
	if containsAny(texts, "rollback marker") {
		t.Fatal("rolled-back alert is visible")
	}
}

func TestRecentAlertTextsWindow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond).UTC()

	id := "pgstore-window-" + now.Format("20060102150405.000")
	if err := s.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
		return tx.InsertAlert(ctx, &ingest.Alert{
			ID:        id,
			Title:     "window marker " + id,
			Summary:   "summary",
			Category:  "health",
			Severity:  3,
			Country:   "Unknown",
			Source:    "test",
			URL:       "https://ex.com/" + id,
			CreatedAt: now,
		})
	}); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	var inWindow, outOfWindow []string
	if err := s.InTx(ctx, func(ctx context.Context, tx ingest.Tx) error {
		var err error
		if inWindow, err = tx.RecentAlertTexts(ctx, now.Add(-time.Hour)); err != nil {
			return err
		}
		outOfWindow, err = tx.RecentAlertTexts(ctx, now.Add(time.Hour))
		return err
	}); err != nil {
		t.Fatalf("RecentAlertTexts: %v", err)
	}

	if !containsAny(inWindow, id) {
		t.Error("alert missing from in-window texts")
	}
	if containsAny(outOfWindow, id) {
		t.Error("alert present in out-of-window texts")
	}
}

func containsAny(texts []string, sub string) bool {
	for _, t := range texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}
