// Package agent dispatches prompts to the text-completion capability with
// timeout, bounded retry and circuit breaking. The capability itself is a
// black box behind the Completion interface.
package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/repoforge/repoforge/internal/config"
)

// Request is one completion call.
type Request struct {
	System      string // System prompt, may be empty
	Prompt      string
	MaxOutput   int // Max completion tokens, 0 for provider default
	Temperature float32
}

// Completion is the external text-completion capability.
type Completion interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the capability for logs and breaker state.
	Name() string
}

// NewCompletion creates a completion backend from configuration.
func NewCompletion(cfg config.CompletionConfig) (Completion, error) {
	switch cfg.Provider {
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("completion provider openai: %s is not set", cfg.APIKeyEnv)
		}
		return NewOpenAI(key, cfg.Model), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}
