package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RunNotice is the payload posted after a run, successful or not.
type RunNotice struct {
	RunID      string            `json:"run_id"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Counts     map[string]int    `json:"counts,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Notifier POSTs run notices as JSON to a webhook URL with retry and
// exponential backoff.
type Notifier struct {
	url        string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierRetries sets the maximum number of retries. Default: 3.
func WithNotifierRetries(n int) NotifierOption {
	return func(w *Notifier) { w.maxRetries = n }
}

// WithNotifierClient sets a custom HTTP client.
func WithNotifierClient(c *http.Client) NotifierOption {
	return func(w *Notifier) { w.client = c }
}

// WithNotifierLogger sets a custom logger.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(w *Notifier) { w.logger = l }
}

// NewNotifier creates a Notifier targeting the given URL.
func NewNotifier(url string, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Notify posts one notice. It retries transport failures and non-2xx
// statuses until the retry budget runs out.
func (n *Notifier) Notify(ctx context.Context, notice RunNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("sink: notify marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("sink: notify request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
			n.logger.Warn("sink: notify failed", "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("sink: notify status %d", resp.StatusCode)
		n.logger.Warn("sink: notify bad status", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("sink: notify retries exhausted: %w", lastErr)
}
