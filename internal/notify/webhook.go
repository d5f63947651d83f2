package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts notifications as Slack-compatible JSON payloads.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier. An empty URL disables it.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments,omitempty"`
}

type webhookAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

func webhookColor(k Kind) string {
	switch k {
	case KindSuccess:
		return "good"
	case KindWarning:
		return "warning"
	case KindError:
		return "danger"
	default:
		return "#439FE0"
	}
}

func (w *WebhookNotifier) Send(n Notification) error {
	if w.url == "" {
		return nil
	}

	payload := webhookPayload{
		Text: n.Title,
		Attachments: []webhookAttachment{{
			Color:  webhookColor(n.Kind),
			Title:  n.RunID,
			Text:   n.Message,
			Footer: "repoforge",
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
