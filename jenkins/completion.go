package jenkins

import (
	"context"
	"time"
)

// WaitForCompletion polls the referenced build until it reaches a terminal
// state or the wall-clock timeout elapses. Transient status-fetch failures
// are logged and polling continues. Returns true only for a SUCCESS result;
// every other terminal result, and a timeout, count as failure.
func (c *Client) WaitForCompletion(ctx context.Context, job string, ref BuildRef, timeout, interval time.Duration) bool {
	c.logger.Infof("waiting for build completion: %s %s (timeout: %s)", job, ref, timeout)

	start := time.Now()
	deadline := start.Add(timeout)

	for time.Now().Before(deadline) {
		c.metrics.IncPoll("status")

		status, err := c.BuildStatus(ctx, job, ref)
		if err != nil {
			c.logger.Warnf("build status fetch failed: %v", err)
		} else {
			if !ref.Latest && status.Number != ref.Number {
				c.logger.Warnf("expected build #%d but the status reports #%d", ref.Number, status.Number)
			}

			if status.Terminal() {
				c.metrics.IncCompletion(status.Result)
				if status.Result == ResultSuccess {
					c.logger.Infof("build succeeded: %s #%d", job, status.Number)
					return true
				}
				c.logger.Errorf("build finished with %s: %s #%d", status.Result, job, status.Number)
				if status.URL != "" {
					c.logger.Infof("build details: %s", status.URL)
				}
				return false
			}

			c.logger.Infof("build in progress: %s #%d (elapsed: %ds)", job, status.Number, int(time.Since(start).Seconds()))
		}

		sleep(ctx, interval)
		if ctx.Err() != nil {
			return false
		}
	}

	c.logger.Errorf("build timed out after %s: %s %s", timeout, job, ref)
	return false
}
