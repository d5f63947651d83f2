// Package notify delivers run summaries over email or webhook. Notification
// failures are logged by callers, never escalated to run failure.
package notify

// Kind classifies a notification for channel formatting.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindWarning
	KindError
)

// Notification is one message to deliver.
type Notification struct {
	Title   string
	Message string
	Kind    Kind
	RunID   string // Optional run reference
}

// Notifier is the notification capability.
type Notifier interface {
	Send(n Notification) error
}

// Multi fans a notification out to several notifiers, returning the last
// error after attempting all of them.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a notifier delivering to all given channels.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Noop discards notifications (disabled configuration, tests).
type Noop struct{}

func (Noop) Send(Notification) error { return nil }
