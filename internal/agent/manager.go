package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/repoforge/repoforge/internal/config"
)

// Outcome is the terminal state of an invocation.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeRejected  Outcome = "rejected" // Output failed the shape check
	OutcomeFailed    Outcome = "failed"   // Upstream error
	OutcomeUnhealthy Outcome = "unhealthy"
)

// ErrUnhealthy is returned when the circuit is open and the manager fails
// fast without a network call.
var ErrUnhealthy = errors.New("completion capability unhealthy")

// ErrRejected marks output that failed the shape check.
var ErrRejected = errors.New("completion output rejected")

// Constraints shape-check the completion output at this layer, so callers
// never see malformed text.
type Constraints struct {
	ExpectJSON bool // Output must be a valid JSON document
}

// Invocation is one prompt dispatched for one chunk of one task. Never reused
// across tasks; Attempts never exceeds the configured retries plus one.
type Invocation struct {
	TaskID     string
	ChunkIndex int
	Request    Request
	Attempts   int
	Outcome    Outcome
	Output     string
	Latency    time.Duration
}

// Manager drives completion calls with per-attempt timeout, exponential
// backoff retry and a circuit breaker over repeated failures. The breaker is
// the only state mutated by concurrent chunk dispatches; gobreaker serializes
// updates internally.
type Manager struct {
	completion Completion
	breaker    *gobreaker.CircuitBreaker
	retry      config.RetryConfig
}

// NewManager creates a Manager over the given completion capability.
func NewManager(completion Completion, retry config.RetryConfig, brk config.BreakerConfig) *Manager {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        completion.Name(),
		MaxRequests: brk.HalfOpenRequests,
		Timeout:     brk.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= brk.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Run cancellation is not a capability failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Manager{completion: completion, breaker: cb, retry: retry}
}

// Healthy reports whether the circuit currently admits requests.
func (m *Manager) Healthy() bool {
	return m.breaker.State() != gobreaker.StateOpen
}

// Dispatch runs the invocation to a terminal outcome. The same prompt is
// retried with exponential backoff on timeouts, upstream errors and rejected
// output, up to the configured retry limit; each retry is a fresh attempt,
// not a resumption. An open circuit fails fast with ErrUnhealthy without
// consuming an attempt against the capability.
func (m *Manager) Dispatch(ctx context.Context, inv *Invocation, c Constraints) error {
	started := time.Now()
	defer func() { inv.Latency = time.Since(started) }()

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		inv.Attempts++
		result, err := m.breaker.Execute(func() (interface{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, m.retry.AgentTimeout)
			defer cancel()

			out, err := m.completion.Complete(attemptCtx, inv.Request)
			if err != nil {
				if attemptCtx.Err() != nil && ctx.Err() == nil {
					return "", fmt.Errorf("attempt timed out after %s: %w",
						m.retry.AgentTimeout, context.DeadlineExceeded)
				}
				return "", err
			}
			if err := checkShape(out, c); err != nil {
				return "", err
			}
			return out, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				inv.Attempts-- // Fast-fail consumed no capability call
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnhealthy, err))
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		inv.Output = result.(string)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retry.InitialInterval
	policy.MaxInterval = m.retry.MaxInterval
	policy.MaxElapsedTime = 0 // Attempt count, not wall clock, bounds retries

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(m.retry.MaxAgentRetries)), ctx))

	inv.Outcome = classify(err)
	if err != nil {
		return fmt.Errorf("invocation %s/%d: %w", inv.TaskID, inv.ChunkIndex, err)
	}
	return nil
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ErrUnhealthy):
		return OutcomeUnhealthy
	case errors.Is(err, ErrRejected):
		return OutcomeRejected
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimedOut
	default:
		return OutcomeFailed
	}
}

// checkShape validates completion output before it reaches the caller.
func checkShape(out string, c Constraints) error {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return fmt.Errorf("%w: empty output", ErrRejected)
	}
	if c.ExpectJSON {
		payload := trimmed
		if strings.HasPrefix(payload, "```") {
			payload = strings.TrimPrefix(payload, "```json")
			payload = strings.TrimPrefix(payload, "```")
			if idx := strings.LastIndex(payload, "```"); idx >= 0 {
				payload = payload[:idx]
			}
			payload = strings.TrimSpace(payload)
		}
		if !gjson.Valid(payload) {
			return fmt.Errorf("%w: output is not valid JSON", ErrRejected)
		}
	}
	return nil
}
