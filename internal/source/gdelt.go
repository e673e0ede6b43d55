package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/news"
)

const gdeltQuery = "travel OR security OR unrest OR disaster"

// GDELT reads recent articles from the GDELT DOC 2.0 API.
type GDELT struct {
	baseURL    string
	httpClient *http.Client
}

// NewGDELT creates a GDELT adapter rooted at baseURL
// (e.g. https://api.gdeltproject.org/api/v2).
func NewGDELT(baseURL string, timeout time.Duration) *GDELT {
	return &GDELT{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

// Name implements Adapter.
func (g *GDELT) Name() string { return "gdelt" }

type gdeltResponse struct {
	Articles []json.RawMessage `json:"articles"`
}

type gdeltArticle struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Domain        string `json:"domain"`
	SeenDate      string `json:"seendate"`
	SourceCountry string `json:"sourcecountry"`
}

// FetchRecent implements Adapter.
func (g *GDELT) FetchRecent(ctx context.Context, limit int) ([]news.Item, error) {
	q := url.Values{}
	q.Set("query", gdeltQuery)
	q.Set("mode", "artlist")
	q.Set("maxrecords", fmt.Sprint(clampLimit(limit, 1, 250)))
	q.Set("format", "json")
	q.Set("sort", "datedesc")

	var resp gdeltResponse
	if err := getJSON(ctx, g.httpClient, g.baseURL+"/doc/doc?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("gdelt: %w", err)
	}

	items := make([]news.Item, 0, len(resp.Articles))
	for _, raw := range resp.Articles {
		var a gdeltArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		if a.Title == "" || a.URL == "" {
			continue
		}

		source := a.Domain
		if source == "" {
			source = g.Name()
		}
		description := ""
		if a.Domain != "" {
			description = fmt.Sprintf("Article from %s: %s", a.Domain, a.Title)
		}

		items = append(items, news.Item{
			Source:      source,
			Title:       a.Title,
			URL:         a.URL,
			Description: description,
			PublishedAt: news.ParseTime(a.SeenDate),
			Country:     a.SourceCountry,
			Payload:     rawPayload(raw),
		})
	}
	return items, nil
}
