package config

import "time"

// CompletionConfig selects and tunes the text-completion capability.
type CompletionConfig struct {
	Provider    string  `json:"provider"`              // "openai" or "mock"
	Model       string  `json:"model,omitempty"`       // Model name (e.g., "gpt-4o-mini")
	APIKeyEnv   string  `json:"api_key_env,omitempty"` // Env var holding the API key
	Temperature float32 `json:"temperature,omitempty"`
	MaxOutput   int     `json:"max_output,omitempty"` // Max completion tokens per call
}

// ChunkingConfig bounds the amount of context sent per agent call.
type ChunkingConfig struct {
	TokenBudget  int `json:"token_budget"`  // Max estimated tokens per chunk
	OverlapLines int `json:"overlap_lines"` // Lines repeated between consecutive chunks of a split file
}

// RetryConfig bounds retries at the two levels the pipeline retries at:
// individual agent invocations, and whole tasks after failed validation.
type RetryConfig struct {
	MaxAgentRetries int           `json:"max_agent_retries"` // Retries per invocation (attempts = retries+1)
	MaxTaskRetries  int           `json:"max_task_retries"`  // Regenerations after failed validation
	AgentTimeout    time.Duration `json:"agent_timeout"`     // Per-attempt dispatch timeout
	InitialInterval time.Duration `json:"initial_interval"`  // First backoff interval
	MaxInterval     time.Duration `json:"max_interval"`      // Backoff interval cap
}

// BreakerConfig tunes the completion-capability circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `json:"consecutive_failures"` // Failures before the circuit opens
	OpenTimeout         time.Duration `json:"open_timeout"`         // How long the circuit stays open
	HalfOpenRequests    uint32        `json:"half_open_requests"`   // Probes allowed while half-open
}

// ExecutionConfig controls coordinator-level scheduling.
type ExecutionConfig struct {
	ChunkFanOut int    `json:"chunk_fan_out"` // Max concurrent chunk dispatches per task
	TestCommand string `json:"test_command,omitempty"`
	KeepClone   bool   `json:"keep_clone,omitempty"` // Retain the working copy after the run
}

// NotificationConfig selects notification channels. Empty values disable a channel.
type NotificationConfig struct {
	SMTPHost   string `json:"smtp_host,omitempty"`
	SMTPPort   int    `json:"smtp_port,omitempty"`
	SMTPUser   string `json:"smtp_user,omitempty"`
	SMTPPass   string `json:"smtp_pass,omitempty"`
	From       string `json:"from,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// StorageConfig locates on-disk state.
type StorageConfig struct {
	DatabasePath string `json:"database_path,omitempty"`
	ReposDir     string `json:"repos_dir,omitempty"` // Where working copies are cloned
}

// OrchestratorConfig is the top-level configuration. It is built once at startup
// and passed into components by value; nothing mutates it after Load.
type OrchestratorConfig struct {
	Completion   CompletionConfig   `json:"completion"`
	Chunking     ChunkingConfig     `json:"chunking"`
	Retry        RetryConfig        `json:"retry"`
	Breaker      BreakerConfig      `json:"breaker"`
	Execution    ExecutionConfig    `json:"execution"`
	Notification NotificationConfig `json:"notification"`
	Storage      StorageConfig      `json:"storage"`
}
