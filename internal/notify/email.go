package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/repoforge/repoforge/internal/config"
)

// EmailNotifier sends run summaries over SMTP.
type EmailNotifier struct {
	cfg       config.NotificationConfig
	recipient string
}

// NewEmailNotifier creates an email notifier for one recipient.
func NewEmailNotifier(cfg config.NotificationConfig, recipient string) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, recipient: recipient}
}

// Send delivers the notification as a plain-text mail. A notifier with no
// SMTP host or recipient configured is disabled and sends nothing.
func (e *EmailNotifier) Send(n Notification) error {
	if e.cfg.SMTPHost == "" || e.recipient == "" {
		return nil
	}

	subject := n.Title
	if n.RunID != "" {
		subject = fmt.Sprintf("%s [run %s]", n.Title, n.RunID)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(n.Message)

	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	var auth smtp.Auth
	if e.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPass, e.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, e.cfg.From, []string{e.recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending mail to %s: %w", e.recipient, err)
	}
	return nil
}
