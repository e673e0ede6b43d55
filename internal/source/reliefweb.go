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

const reliefwebAppName = "beacon-risk-alerts"

// descriptionExcerptLen caps the description taken from a report body.
const descriptionExcerptLen = 400

// ReliefWeb reads recent humanitarian reports from the ReliefWeb v1 API.
type ReliefWeb struct {
	baseURL    string
	httpClient *http.Client
}

// NewReliefWeb creates a ReliefWeb adapter rooted at baseURL
// (e.g. https://api.reliefweb.int/v1).
func NewReliefWeb(baseURL string, timeout time.Duration) *ReliefWeb {
	return &ReliefWeb{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

// Name implements Adapter.
func (r *ReliefWeb) Name() string { return "reliefweb" }

type reliefwebResponse struct {
	Data []json.RawMessage `json:"data"`
}

type reliefwebReport struct {
	Fields struct {
		Title    string `json:"title"`
		URL      string `json:"url"`
		URLAlias string `json:"url_alias"`
		Body     string `json:"body"`
		Country  []struct {
			Name string `json:"name"`
		} `json:"country"`
		Source []struct {
			Name string `json:"name"`
		} `json:"source"`
		Date struct {
			Original string `json:"original"`
			Created  string `json:"created"`
		} `json:"date"`
	} `json:"fields"`
}

// FetchRecent implements Adapter.
func (r *ReliefWeb) FetchRecent(ctx context.Context, limit int) ([]news.Item, error) {
	q := url.Values{}
	q.Set("appname", reliefwebAppName)
	q.Set("limit", fmt.Sprint(clampLimit(limit, 1, 100)))
	q.Add("sort[]", "date:desc")

	var resp reliefwebResponse
	if err := getJSON(ctx, r.httpClient, r.baseURL+"/reports?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("reliefweb: %w", err)
	}

	items := make([]news.Item, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var rep reliefwebReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			continue
		}
		f := rep.Fields
		if f.Title == "" {
			continue
		}

		link := f.URL
		if link == "" {
			link = f.URLAlias
		}
		if link == "" {
			continue
		}
		// Some reports carry site-relative aliases.
		if strings.HasPrefix(link, "/") {
			link = "https://reliefweb.int" + link
		}

		source := r.Name()
		if len(f.Source) > 0 && f.Source[0].Name != "" {
			source = f.Source[0].Name
		}
		country := ""
		if len(f.Country) > 0 {
			country = f.Country[0].Name
		}

		published := news.ParseTime(f.Date.Original)
		if published == nil {
			published = news.ParseTime(f.Date.Created)
		}

		description := f.Body
		if len(description) > descriptionExcerptLen {
			description = description[:descriptionExcerptLen]
		}

		items = append(items, news.Item{
			Source:      source,
			Title:       f.Title,
			URL:         link,
			Description: description,
			Content:     f.Body,
			PublishedAt: published,
			Country:     country,
			Payload:     rawPayload(raw),
		})
	}
	return items, nil
}
