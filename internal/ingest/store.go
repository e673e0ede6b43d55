package ingest

import (
	"context"
	"time"
)

// Tx is the set of persistence operations available inside one ingestion
// transaction.
type Tx interface {
	// UpsertRawItem inserts the item or, when a row with the same
	// (source, url) already exists, refreshes its mutable fields and
	// fetched_at while keeping the original ID.
	UpsertRawItem(ctx context.Context, item *RawNewsItem) error

	// InsertAlert persists a newly synthesized alert.
	InsertAlert(ctx context.Context, alert *Alert) error

	// RecentAlertTexts returns the comparison texts of alerts created at
	// or after since, for seeding the near-duplicate index.
	RecentAlertTexts(ctx context.Context, since time.Time) ([]string, error)
}

// Store is the persistence boundary for ingestion runs. An entire run's
// writes happen inside one transaction: fn returning an error rolls
// everything back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
