// Package llm defines the remote-model capability consumed by the enrichment
// chain: a single polymorphic Invoke over swappable backends. Correctness of
// the pipeline never depends on a provider succeeding; callers fall back to
// deterministic heuristics on any error.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/beacon/internal/llm/claude"
	"github.com/linnemanlabs/beacon/internal/llm/ollama"
)

// ErrDisabled is returned by the Disabled provider on every call.
var ErrDisabled = errors.New("llm: provider disabled")

// Provider is the interface for any model backend. Invoke sends a prompt and
// returns free-form text, which may embed JSON.
type Provider interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Disabled is the null provider. Every stage using it runs its heuristic.
type Disabled struct{}

// Invoke always fails with ErrDisabled.
func (Disabled) Invoke(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}

// Options selects and configures a backend.
type Options struct {
	Provider string // "claude", "ollama", or "" / "disabled"
	Model    string
	APIKey   string        // claude
	BaseURL  string        // ollama
	Timeout  time.Duration // per-request timeout
}

// New builds the configured provider. Missing credentials degrade to the
// Disabled provider rather than failing startup; the pipeline must run
// identically without a model.
func New(opts Options) Provider {
	switch opts.Provider {
	case "claude":
		if opts.APIKey == "" || opts.Model == "" {
			return Disabled{}
		}
		return claude.New(opts.APIKey, opts.Model, opts.Timeout)
	case "ollama":
		if opts.BaseURL == "" || opts.Model == "" {
			return Disabled{}
		}
		return ollama.New(opts.BaseURL, opts.Model, opts.Timeout)
	default:
		return Disabled{}
	}
}
