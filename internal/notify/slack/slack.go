// Package slack forwards high-severity risk alerts to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/ingest"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends alerts at or above a severity floor to a Slack webhook.
// It implements ingest.Notifier.
type Notifier struct {
	webhookURL  string
	minSeverity int
	client      *http.Client
	logger      log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, NotifyAlert is
// a no-op. Alerts below minSeverity are silently dropped.
func New(webhookURL string, minSeverity int, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL:  webhookURL,
		minSeverity: minSeverity,
		client:      &http.Client{Timeout: httpTimeout},
		logger:      logger,
	}
}

// NotifyAlert posts one alert to the configured Slack webhook. Alerts below
// the severity floor, or any alert when no webhook URL is configured,
// return nil immediately.
func (n *Notifier) NotifyAlert(ctx context.Context, al *ingest.Alert) error {
	if n.webhookURL == "" || al.Severity < n.minSeverity {
		return nil
	}

	msg := buildMessage(al)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "alert forwarded to slack", "alert_id", al.ID, "severity", al.Severity)
	return nil
}

func buildMessage(al *ingest.Alert) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(al),
			{"type": "divider"},
			fieldsBlock(al),
			{"type": "divider"},
			summaryBlock(al),
			{"type": "divider"},
			contextBlock(al),
		},
	}
}

func headerBlock(al *ingest.Alert) map[string]any {
	text := fmt.Sprintf("%s Risk Alert: %s", severityEmoji(al.Severity), al.Title)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, 150),
		},
	}
}

func fieldsBlock(al *ingest.Alert) map[string]any {
	location := al.Country
	if al.Region != "" {
		location = al.Region + ", " + al.Country
	}
	verified := "no"
	if al.Verified {
		verified = fmt.Sprintf("yes (%.2f)", al.VerificationScore)
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %d/5", al.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s", al.Category.Humanize()),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Location:* %s", location),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Verified:* %s", verified),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Source:* <%s|%s>", al.URL, al.Source),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(al *ingest.Alert) map[string]any {
	text := truncate(al.Summary, maxSummaryLen)
	if text == "" {
		text = "_No summary available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Summary*\n\n%s", text),
		},
	}
}

func contextBlock(al *ingest.Alert) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("beacon • alert %s • %s", al.ID, al.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(severity int) string {
	switch {
	case severity >= 4:
		return "\U0001f534" // red circle
	case severity == 3:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
