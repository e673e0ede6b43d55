package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config holds the service configuration, bound to flags and filled from
// the environment by main.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	DatabaseURL string

	GDELTBaseURL         string
	ReliefWebBaseURL     string
	USGSFeedURL          string
	NewsAPIKey           string
	RSSFeedURLs          string
	SourceTimeoutSeconds int
	FetchLimit           int

	DedupThreshold     float64
	DedupDimensions    int
	DedupLookbackHours int

	LLMProvider       string
	LLMModel          string
	LLMAPIKey         string
	LLMBaseURL        string
	LLMTimeoutSeconds int
	SummaryMaxChars   int

	ScheduleEnabled         bool
	ScheduleIntervalMinutes int

	SlackWebhookURL  string
	SlackMinSeverity int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty disables auth)")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")

	fs.StringVar(&c.GDELTBaseURL, "gdelt-base-url", "https://api.gdeltproject.org/api/v2", "GDELT DOC API base URL")
	fs.StringVar(&c.ReliefWebBaseURL, "reliefweb-base-url", "https://api.reliefweb.int/v1", "ReliefWeb API base URL")
	fs.StringVar(&c.USGSFeedURL, "usgs-feed-url", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson", "USGS earthquake GeoJSON summary feed URL")
	fs.StringVar(&c.NewsAPIKey, "newsapi-key", "", "newsapi.org API key (empty disables the NewsAPI source)")
	fs.StringVar(&c.RSSFeedURLs, "rss-feed-urls", "", "comma-separated RSS/Atom feed URLs (empty disables the RSS source)")
	fs.IntVar(&c.SourceTimeoutSeconds, "source-timeout-seconds", 20, "per-source HTTP timeout in seconds (1..120)")
	fs.IntVar(&c.FetchLimit, "fetch-limit", 50, "max records requested per source per run (1..250)")

	fs.Float64Var(&c.DedupThreshold, "dedup-threshold", 0.90, "cosine similarity at or above which items are near-duplicates (0..1]")
	fs.IntVar(&c.DedupDimensions, "dedup-dimensions", 256, "hashed bag-of-words vector width (64..4096)")
	fs.IntVar(&c.DedupLookbackHours, "dedup-lookback-hours", 72, "hours of recent alerts seeding the duplicate index (1..720)")

	fs.StringVar(&c.LLMProvider, "llm-provider", "", "enrichment model provider: claude, ollama, or empty for heuristics only")
	fs.StringVar(&c.LLMModel, "llm-model", "claude-sonnet-4-20250514", "model name passed to the provider")
	fs.StringVar(&c.LLMAPIKey, "llm-api-key", "", "API key for the model provider (claude)")
	fs.StringVar(&c.LLMBaseURL, "llm-base-url", "http://localhost:11434", "base URL for self-hosted providers (ollama)")
	fs.IntVar(&c.LLMTimeoutSeconds, "llm-timeout-seconds", 30, "per-call model timeout in seconds (1..300)")
	fs.IntVar(&c.SummaryMaxChars, "summary-max-chars", 450, "character cap on generated alert summaries (100..4000)")

	fs.BoolVar(&c.ScheduleEnabled, "schedule-enabled", true, "run ingestion automatically on an interval")
	fs.IntVar(&c.ScheduleIntervalMinutes, "schedule-interval-minutes", 15, "minutes between scheduled ingestion runs (1..1440)")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-severity alert notifications")
	fs.IntVar(&c.SlackMinSeverity, "slack-min-severity", 4, "minimum alert severity forwarded to Slack (1..5)")
}

// RSSFeeds parses the comma-separated feed list, dropping empty entries.
func (c *Config) RSSFeeds() []string {
	var feeds []string
	for _, f := range strings.Split(c.RSSFeedURLs, ",") {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.SourceTimeoutSeconds <= 0 || c.SourceTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid SOURCE_TIMEOUT_SECONDS %d (must be 1..120)", c.SourceTimeoutSeconds))
	}
	if c.FetchLimit <= 0 || c.FetchLimit > 250 {
		errs = append(errs, fmt.Errorf("invalid FETCH_LIMIT %d (must be 1..250)", c.FetchLimit))
	}

	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		errs = append(errs, fmt.Errorf("invalid DEDUP_THRESHOLD %g (must be in (0..1])", c.DedupThreshold))
	}
	if c.DedupDimensions < 64 || c.DedupDimensions > 4096 {
		errs = append(errs, fmt.Errorf("invalid DEDUP_DIMENSIONS %d (must be 64..4096)", c.DedupDimensions))
	}
	if c.DedupLookbackHours <= 0 || c.DedupLookbackHours > 720 {
		errs = append(errs, fmt.Errorf("invalid DEDUP_LOOKBACK_HOURS %d (must be 1..720)", c.DedupLookbackHours))
	}

	switch c.LLMProvider {
	case "", "claude", "ollama":
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude, ollama, or empty)", c.LLMProvider))
	}
	if c.LLMTimeoutSeconds <= 0 || c.LLMTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS %d (must be 1..300)", c.LLMTimeoutSeconds))
	}
	if c.SummaryMaxChars < 100 || c.SummaryMaxChars > 4000 {
		errs = append(errs, fmt.Errorf("invalid SUMMARY_MAX_CHARS %d (must be 100..4000)", c.SummaryMaxChars))
	}

	if c.ScheduleIntervalMinutes <= 0 || c.ScheduleIntervalMinutes > 1440 {
		errs = append(errs, fmt.Errorf("invalid SCHEDULE_INTERVAL_MINUTES %d (must be 1..1440)", c.ScheduleIntervalMinutes))
	}

	if c.SlackMinSeverity < 1 || c.SlackMinSeverity > 5 {
		errs = append(errs, fmt.Errorf("invalid SLACK_MIN_SEVERITY %d (must be 1..5)", c.SlackMinSeverity))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
