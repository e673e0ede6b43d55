package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/news"
)

const (
	newsAPIBaseURL = "https://newsapi.org/v2/everything"
	newsAPIQuery   = "travel OR security OR unrest OR disaster OR outbreak"
)

// NewsAPI reads recent English-language articles from newsapi.org. Without
// an API key the adapter logs a warning and contributes zero items.
type NewsAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// NewNewsAPI creates a NewsAPI adapter.
func NewNewsAPI(apiKey string, timeout time.Duration, logger log.Logger) *NewsAPI {
	if logger == nil {
		logger = log.Nop()
	}
	return &NewsAPI{
		apiKey:     apiKey,
		baseURL:    newsAPIBaseURL,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

// Name implements Adapter.
func (n *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Articles []json.RawMessage `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
	PublishedAt string `json:"publishedAt"`
}

// FetchRecent implements Adapter.
func (n *NewsAPI) FetchRecent(ctx context.Context, limit int) ([]news.Item, error) {
	if n.apiKey == "" {
		n.logger.Warn(ctx, "skipping newsapi fetch, api key not configured")
		return nil, nil
	}

	q := url.Values{}
	q.Set("apiKey", n.apiKey)
	q.Set("language", "en")
	q.Set("pageSize", fmt.Sprint(clampLimit(limit, 1, 100)))
	q.Set("sortBy", "publishedAt")
	q.Set("q", newsAPIQuery)

	var resp newsAPIResponse
	if err := getJSON(ctx, n.httpClient, n.baseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}

	items := make([]news.Item, 0, len(resp.Articles))
	for _, raw := range resp.Articles {
		var a newsAPIArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		if a.Title == "" || a.URL == "" {
			continue
		}

		source := a.Source.Name
		if source == "" {
			source = n.Name()
		}

		items = append(items, news.Item{
			Source:      source,
			Title:       a.Title,
			URL:         a.URL,
			Description: a.Description,
			Content:     a.Content,
			PublishedAt: news.ParseTime(a.PublishedAt),
			Payload:     rawPayload(raw),
		})
	}
	return items, nil
}
