package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"support-agent/internal/message"
)

type HandoffRequest struct {
	Contact    string
	Summary    string
	Details    string
	Reason     string
	Transcript string
	Metadata   message.Metadata
}

type Notifier interface {
	Notify(ctx context.Context, req HandoffRequest) error
}

// WebhookError is returned for any non-2xx response from the webhook.
type WebhookError struct {
	Status int
	Body   string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("notify: status=%d body=%s", e.Status, e.Body)
}

// WebhookNotifier posts handoff requests to a team chat webhook.
type WebhookNotifier struct {
	URL  string
	HTTP *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookNotifier{
		URL:  strings.TrimSpace(url),
		HTTP: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, req HandoffRequest) error {
	if n.URL == "" {
		return errors.New("handoff webhook url is not configured")
	}

	var b strings.Builder
	b.WriteString("Support handoff requested\n")
	b.WriteString("Contact: " + req.Contact + "\n")
	b.WriteString("Summary: " + req.Summary + "\n")
	if strings.TrimSpace(req.Details) != "" {
		b.WriteString("Details: " + req.Details + "\n")
	}
	if strings.TrimSpace(req.Reason) != "" {
		b.WriteString("Reason: " + req.Reason + "\n")
	}
	if strings.TrimSpace(req.Metadata.URL) != "" {
		b.WriteString("Page: " + req.Metadata.URL + "\n")
	}
	if strings.TrimSpace(req.Transcript) != "" {
		b.WriteString("\nTranscript:\n" + req.Transcript + "\n")
	}

	body, err := json.Marshal(map[string]string{"text": b.String()})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return &WebhookError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}
