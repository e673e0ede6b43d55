package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/news"
)

// USGS reads the USGS earthquake GeoJSON summary feed.
type USGS struct {
	feedURL    string
	httpClient *http.Client
}

// NewUSGS creates a USGS adapter for the given summary feed URL
// (e.g. .../summary/all_day.geojson).
func NewUSGS(feedURL string, timeout time.Duration) *USGS {
	return &USGS{
		feedURL:    feedURL,
		httpClient: newHTTPClient(timeout),
	}
}

// Name implements Adapter.
func (u *USGS) Name() string { return "usgs" }

type usgsResponse struct {
	Features []json.RawMessage `json:"features"`
}

type usgsFeature struct {
	Properties struct {
		Title  string `json:"title"`
		Place  string `json:"place"`
		URL    string `json:"url"`
		Detail string `json:"detail"`
		Time   *int64 `json:"time"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat, depth
	} `json:"geometry"`
}

// FetchRecent implements Adapter. The feed has no limit parameter, so the
// first limit features win.
func (u *USGS) FetchRecent(ctx context.Context, limit int) ([]news.Item, error) {
	var resp usgsResponse
	if err := getJSON(ctx, u.httpClient, u.feedURL, &resp); err != nil {
		return nil, fmt.Errorf("usgs: %w", err)
	}

	features := resp.Features
	if limit > 0 && len(features) > limit {
		features = features[:limit]
	}

	items := make([]news.Item, 0, len(features))
	for _, raw := range features {
		var f usgsFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		p := f.Properties

		link := p.URL
		if link == "" {
			link = p.Detail
		}
		if p.Title == "" || link == "" {
			continue
		}

		var lat, lon *float64
		if len(f.Geometry.Coordinates) > 1 {
			lonV, latV := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
			lon, lat = &lonV, &latV
		} else if len(f.Geometry.Coordinates) == 1 {
			lonV := f.Geometry.Coordinates[0]
			lon = &lonV
		}

		// The place string ends with the country or state, e.g.
		// "33 km SSE of Osaka, Japan".
		country := ""
		if idx := strings.LastIndex(p.Place, ","); idx >= 0 {
			country = strings.TrimSpace(p.Place[idx+1:])
		}

		var published *time.Time
		if p.Time != nil {
			published = news.ParseTime(*p.Time)
		}

		items = append(items, news.Item{
			Source:      u.Name(),
			Title:       p.Title,
			URL:         link,
			Description: p.Place,
			Content:     p.Detail,
			PublishedAt: published,
			Country:     country,
			Region:      p.Place,
			Latitude:    lat,
			Longitude:   lon,
			Payload:     rawPayload(raw),
		})
	}
	return items, nil
}
