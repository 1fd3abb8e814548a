package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

const (
	// HeaderMessageKey carries the tenantId:resourceId ordering key.
	HeaderMessageKey = "X-Message-Key"

	// HeaderSequence carries the outbox sequence number.
	HeaderSequence = "X-Notification-Seq"
)

// Publisher sends one notification downstream.
type Publisher interface {
	Publish(ctx context.Context, n api.Notification) error
}

// LogPublisher writes each notification as a log line. It is the default
// when no downstream consumer is configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(ctx context.Context, n api.Notification) error {
	logging.Info("Notifier", "%s %s on %s (install %q, seq %d)", n.Op, n.AgentType, n.Key(), n.InstallID, n.Seq)
	return nil
}

// WebhookPublisher POSTs each notification as JSON to a URL.
type WebhookPublisher struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewWebhookPublisher creates a WebhookPublisher. A nil client means
// http.DefaultClient; a non-positive timeout means 10s per request.
func NewWebhookPublisher(url string, client *http.Client, timeout time.Duration) *WebhookPublisher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPublisher{url: url, client: client, timeout: timeout}
}

// Publish implements Publisher. Any non-2xx response is an error.
func (p *WebhookPublisher) Publish(ctx context.Context, n api.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %d: %w", n.Seq, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderMessageKey, n.Key())
	req.Header.Set(HeaderSequence, strconv.FormatInt(n.Seq, 10))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification %d: %w", n.Seq, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post notification %d: unexpected status %s", n.Seq, resp.Status)
	}
	return nil
}
