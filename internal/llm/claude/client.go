// Package claude implements the llm.Provider capability on the Anthropic
// Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultTimeout = 30 * time.Second

// responseTokens bounds enrichment-stage replies. Stages ask for small JSON
// objects or short summaries, never long analyses.
const responseTokens = 1024

// Client calls the Anthropic Messages API with a fixed model.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude-backed provider.
func New(apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
		),
		model: model,
	}
}

// Invoke sends the prompt as a single user message and concatenates the text
// blocks of the reply.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: messages.new: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
