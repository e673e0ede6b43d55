package llm

import (
	"context"
	"errors"
	"testing"
)

func TestDisabled_AlwaysErrs(t *testing.T) {
	t.Parallel()

	_, err := Disabled{}.Invoke(context.Background(), "anything")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestNew_Selection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		opts     Options
		disabled bool
	}{
		{"empty", Options{}, true},
		{"unknown provider", Options{Provider: "gpt", Model: "x"}, true},
		{"claude without key", Options{Provider: "claude", Model: "claude-sonnet-4-20250514"}, true},
		{"claude", Options{Provider: "claude", Model: "claude-sonnet-4-20250514", APIKey: "sk-test"}, false},
		{"ollama without url", Options{Provider: "ollama", Model: "llama3"}, true},
		{"ollama", Options{Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434"}, false},
	}

	for _, tc := range cases {
		p := New(tc.opts)
		_, isDisabled := p.(Disabled)
		if isDisabled != tc.disabled {
			t.Errorf("%s: disabled = %v, want %v", tc.name, isDisabled, tc.disabled)
		}
	}
}
