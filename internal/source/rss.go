package source

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/mmcdole/gofeed"

	"github.com/linnemanlabs/beacon/internal/news"
)

// RSS aggregates a configured list of RSS/Atom feeds. Feeds are fetched
// concurrently; a failing feed is logged and skipped, never failing the
// adapter. Only an empty feed list yields zero items without error.
type RSS struct {
	feedURLs []string
	timeout  time.Duration
	parser   *gofeed.Parser
	logger   log.Logger
}

// NewRSS creates an RSS adapter over the given feed URLs.
func NewRSS(feedURLs []string, timeout time.Duration, logger log.Logger) *RSS {
	if logger == nil {
		logger = log.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	parser := gofeed.NewParser()
	parser.Client = newHTTPClient(timeout)
	return &RSS{
		feedURLs: feedURLs,
		timeout:  timeout,
		parser:   parser,
		logger:   logger,
	}
}

// Name implements Adapter.
func (r *RSS) Name() string { return "rss" }

// FetchRecent implements Adapter. Entries across all feeds are merged,
// sorted newest first, and truncated to limit.
func (r *RSS) FetchRecent(ctx context.Context, limit int) ([]news.Item, error) {
	if len(r.feedURLs) == 0 {
		return nil, nil
	}

	feeds := make([]*gofeed.Feed, len(r.feedURLs))
	var wg sync.WaitGroup
	for i, feedURL := range r.feedURLs {
		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()
			feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
			if err != nil {
				r.logger.Warn(ctx, "failed to parse rss feed", "feed_url", feedURL, "error", err.Error())
				return
			}
			feeds[i] = feed
		}(i, feedURL)
	}
	wg.Wait()

	var items []news.Item
	for i, feed := range feeds {
		if feed == nil {
			continue
		}
		source := feed.Title
		if source == "" {
			source = r.Name()
		}
		for _, entry := range feed.Items {
			if entry == nil || entry.Title == "" || entry.Link == "" {
				continue
			}
			items = append(items, news.Item{
				Source:      source,
				Title:       entry.Title,
				URL:         entry.Link,
				Description: entry.Description,
				Content:     entry.Content,
				PublishedAt: entryPublishedAt(entry),
				Payload:     entryPayload(r.feedURLs[i], entry),
			})
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		return publishedOrZero(items[a].PublishedAt).After(publishedOrZero(items[b].PublishedAt))
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func entryPublishedAt(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return news.ParseTime(*entry.PublishedParsed)
	}
	if entry.UpdatedParsed != nil {
		return news.ParseTime(*entry.UpdatedParsed)
	}
	if entry.Published != "" {
		return news.ParseTime(entry.Published)
	}
	return news.ParseTime(entry.Updated)
}

func publishedOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// entryPayload archives the entry through a JSON round-trip so downstream
// storage sees only JSON-safe values.
func entryPayload(feedURL string, entry *gofeed.Item) map[string]any {
	b, err := json.Marshal(entry)
	if err != nil {
		return map[string]any{"feed_url": feedURL}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"feed_url": feedURL}
	}
	return map[string]any{
		"feed_url": feedURL,
		"entry":    news.JSONSafeMap(m),
	}
}
