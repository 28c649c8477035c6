package workflow

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"jenkinsflow/internal/observability"
)

const pollRequestTimeout = 10 * time.Second

// Poller retries an external HTTP endpoint until it answers with the
// expected status code. Used between build steps as a readiness gate.
type Poller struct {
	client  *http.Client
	logger  *logrus.Logger
	metrics *observability.Metrics
}

func NewPoller(logger *logrus.Logger, metrics *observability.Metrics) *Poller {
	if logger == nil {
		logger = observability.NewConsoleLogger()
	}
	return &Poller{
		client: &http.Client{
			Timeout: pollRequestTimeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// PollUntilSuccess issues up to maxAttempts GETs, interval apart, and returns
// true as soon as one answers expectedStatus. Transport errors and wrong
// statuses both just consume an attempt. No sleep after the final attempt.
func (p *Poller) PollUntilSuccess(ctx context.Context, rawURL string, maxAttempts int, interval time.Duration, expectedStatus int) bool {
	p.logger.Infof("polling endpoint: %s", rawURL)
	p.logger.Infof("policy: up to %d attempts, %s apart, expecting status %d", maxAttempts, interval, expectedStatus)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p.metrics.IncPoll("external")
		p.logger.Infof("attempt %d/%d", attempt, maxAttempts)

		if p.attempt(ctx, rawURL, expectedStatus) {
			p.logger.Info("endpoint answered as expected")
			return true
		}

		if attempt < maxAttempts {
			sleepCtx(ctx, interval)
			if ctx.Err() != nil {
				return false
			}
		}
	}

	p.logger.Errorf("endpoint polling exhausted after %d attempts", maxAttempts)
	return false
}

func (p *Poller) attempt(ctx context.Context, rawURL string, expectedStatus int) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		p.logger.Warnf("request build failed: %v", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warnf("endpoint call failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	if resp.StatusCode == expectedStatus {
		if len(body) > 0 {
			p.logger.Infof("response preview: %s", body)
		}
		return true
	}

	p.logger.Infof("unexpected status %d", resp.StatusCode)
	if len(body) > 0 {
		p.logger.Infof("response preview: %s", body)
	}
	return false
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
