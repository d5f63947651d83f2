package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// DefaultConfig returns the built-in configuration. Every value here can be
// overridden by the global or project config file.
func DefaultConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		Completion: CompletionConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.3,
			MaxOutput:   4096,
		},
		Chunking: ChunkingConfig{
			TokenBudget:  24000,
			OverlapLines: 8,
		},
		Retry: RetryConfig{
			MaxAgentRetries: 2,
			MaxTaskRetries:  2,
			AgentTimeout:    120 * time.Second,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			HalfOpenRequests:    3,
		},
		Execution: ExecutionConfig{
			ChunkFanOut: 4,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(xdg.DataHome, "repoforge", "repoforge.db"),
			ReposDir:     filepath.Join(xdg.DataHome, "repoforge", "repos"),
		},
	}
}
