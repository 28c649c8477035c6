package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"jenkinsflow/internal/observability"
)

// QueuePolicy bounds the queue-item resolution poll.
type QueuePolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultQueuePolicy matches the server-side queue latency seen in practice.
var DefaultQueuePolicy = QueuePolicy{MaxAttempts: 30, Interval: 2 * time.Second}

// Options tunes a Client beyond its credentials.
type Options struct {
	QueuePolicy QueuePolicy
	Logger      *logrus.Logger
	Metrics     *observability.Metrics
}

// Client talks to a single Jenkins controller with basic auth and, once
// resolved, a CSRF crumb on every POST.
type Client struct {
	baseURL  string
	username string
	token    string
	crumb    *Crumb
	queue    QueuePolicy
	client   *http.Client
	logger   *logrus.Logger
	metrics  *observability.Metrics
}

// NewClient constructs a client with sensible defaults. The base URL keeps
// no trailing slash so path joins stay predictable.
func NewClient(baseURL, username, token string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = observability.NewConsoleLogger()
	}
	if opts.QueuePolicy.MaxAttempts <= 0 {
		opts.QueuePolicy = DefaultQueuePolicy
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		queue:    opts.QueuePolicy,
		client: &http.Client{
			Timeout: 15 * time.Second,
			// Jenkins answers a stop with a 302; surface it instead of
			// following the redirect.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// BaseURL returns the normalized controller URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.token)
	return c.client.Do(req)
}

// getJSON fetches rawURL and decodes the body into out. Any non-200 answer
// is an error.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// postForm sends a form-encoded POST with the crumb header attached when one
// is held. The caller owns the response body.
func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.crumb != nil {
		req.Header.Set(c.crumb.RequestField, c.crumb.Value)
	}
	return c.client.Do(req)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
