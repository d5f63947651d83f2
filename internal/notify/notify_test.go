package notify

import (
	"errors"
	"testing"

	"github.com/repoforge/repoforge/internal/config"
)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Send(n Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func TestMulti_SendsToAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	m := NewMulti(a, b)

	n := Notification{Title: "done", Message: "all tasks completed", Kind: KindSuccess}
	if err := m.Send(n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(a.sent), len(b.sent))
	}
}

func TestMulti_FailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("smtp down")}
	working := &recordingNotifier{}
	m := NewMulti(failing, working)

	err := m.Send(Notification{Title: "t", Message: "m"})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(working.sent) != 1 {
		t.Error("later notifier skipped after earlier failure")
	}
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).Send(Notification{Title: "x"}); err != nil {
		t.Fatalf("Noop.Send: %v", err)
	}
}

func TestEmailNotifier_DisabledWithoutHost(t *testing.T) {
	e := NewEmailNotifier(config.NotificationConfig{}, "dev@example.test")
	if err := e.Send(Notification{Title: "t", Message: "m"}); err != nil {
		t.Fatalf("disabled notifier returned error: %v", err)
	}
}
