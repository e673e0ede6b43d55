// Package pgstore provides a PostgreSQL implementation of ingest.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/ingest"
	"github.com/linnemanlabs/beacon/internal/postgres"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/ingest/pgstore")

//go:embed schema.sql
var schema string

// Store persists raw items and alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, applies the schema, and returns a ready Store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InTx runs fn inside one database transaction. An error from fn rolls the
// transaction back and is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ingest.Tx) error) error {
	ctx, span := tracer.Start(ctx, "pgstore.InTx", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
	))
	defer span.End()

	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if err := fn(ctx, &txn{tx: pgtx}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txn struct {
	tx pgx.Tx
}

// UpsertRawItem inserts the item or refreshes the existing row keyed by the
// case-insensitive (source, url) pair. The original row's id survives
// re-ingestion.
func (t *txn) UpsertRawItem(ctx context.Context, item *ingest.RawNewsItem) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertRawItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var payloadJSON []byte
	if item.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	id := item.ID
	if id == "" {
		id = ulid.Make().String()
	}

	query := `INSERT INTO raw_news_items (
		id, source, title, url, description, content, published_at,
		country, region, latitude, longitude, payload, fetched_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	ON CONFLICT (lower(source), lower(url)) DO UPDATE SET
		title        = EXCLUDED.title,
		description  = EXCLUDED.description,
		content      = EXCLUDED.content,
		published_at = EXCLUDED.published_at,
		country      = EXCLUDED.country,
		region       = EXCLUDED.region,
		latitude     = EXCLUDED.latitude,
		longitude    = EXCLUDED.longitude,
		payload      = EXCLUDED.payload,
		fetched_at   = EXCLUDED.fetched_at`

	_, err := t.tx.Exec(ctx, query,
		id, item.Source, item.Title, item.URL, item.Description, item.Content,
		item.PublishedAt, item.Country, item.Region, item.Latitude, item.Longitude,
		payloadJSON, item.FetchedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert raw item: %w", err)
	}
	return nil
}

// InsertAlert persists one alert.
func (t *txn) InsertAlert(ctx context.Context, alert *ingest.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.InsertAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO alerts (
		id, title, summary, category, severity, country, region, source, url,
		published_at, latitude, longitude, verified, verification_score,
		full_content, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err := t.tx.Exec(ctx, query,
		alert.ID, alert.Title, alert.Summary, string(alert.Category), alert.Severity,
		alert.Country, alert.Region, alert.Source, alert.URL, alert.PublishedAt,
		alert.Latitude, alert.Longitude, alert.Verified, alert.VerificationScore,
		alert.FullContent, alert.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecentAlertTexts returns comparison texts for alerts created at or after
// since.
func (t *txn) RecentAlertTexts(ctx context.Context, since time.Time) ([]string, error) {
	ctx, span := tracer.Start(ctx, "pgstore.RecentAlertTexts", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := t.tx.Query(ctx,
		`SELECT title, summary, full_content
		 FROM alerts WHERE created_at >= $1 ORDER BY created_at`,
		since,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var al ingest.Alert
		if err := rows.Scan(&al.Title, &al.Summary, &al.FullContent); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		texts = append(texts, al.Text())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return texts, nil
}
