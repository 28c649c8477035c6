package jenkins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// queueItem is the queue entry a trigger resolves through. Executable shows
// up once an executor picked the item.
type queueItem struct {
	Executable *struct {
		Number int `json:"number"`
	} `json:"executable"`
	Cancelled bool `json:"cancelled"`
}

// Trigger starts a parameterized build of job. BRANCH is always supplied;
// job-specific parameters may extend or shadow it. The returned ref carries
// the assigned build number, or points at the job's latest build when the
// queue never yielded one. A non-2xx trigger answer is a hard error.
func (c *Client) Trigger(ctx context.Context, job, branch string, parameters map[string]string) (BuildRef, error) {
	form := url.Values{}
	form.Set("BRANCH", branch)
	for k, v := range parameters {
		form.Set(k, v)
	}

	triggerURL := fmt.Sprintf("%s/job/%s/buildWithParameters", c.baseURL, url.PathEscape(job))
	c.logger.Infof("triggering build: %s (branch: %s)", job, branch)
	if len(parameters) > 0 {
		c.logger.Infof("build parameters: %v", form)
	}

	resp, err := c.postForm(ctx, triggerURL, form)
	if err != nil {
		return BuildRef{}, fmt.Errorf("trigger %s: %w", job, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return BuildRef{}, fmt.Errorf("trigger %s: unexpected status %s: %s", job, resp.Status, body)
	}
	c.logger.Infof("build triggered: %s", job)

	if number, ok := c.resolveQueue(ctx, resp.Header.Get("Location")); ok {
		c.logger.Infof("assigned build number: #%d", number)
		return BuildRef{Number: number}, nil
	}

	c.logger.Warnf("build number unknown for %s, falling back to the latest build", job)
	return LatestBuild(), nil
}

// resolveQueue polls the queue item behind location until it names a build
// number. Cancellation and any fetch failure abort immediately; running out
// of attempts is normal under backlog and just reports not-found.
func (c *Client) resolveQueue(ctx context.Context, location string) (int, bool) {
	if location == "" {
		c.logger.Warn("trigger response carried no Location header")
		return 0, false
	}
	c.logger.Infof("queued at: %s", location)

	queueURL := c.queueItemURL(location)
	for attempt := 1; attempt <= c.queue.MaxAttempts; attempt++ {
		c.metrics.IncPoll("queue")

		var item queueItem
		if err := c.getJSON(ctx, queueURL, &item); err != nil {
			c.logger.Warnf("queue lookup failed: %v", err)
			return 0, false
		}

		if item.Executable != nil && item.Executable.Number > 0 {
			return item.Executable.Number, true
		}
		if item.Cancelled {
			c.logger.Warn("queue item was cancelled")
			return 0, false
		}

		c.logger.Infof("waiting for the queue to assign a build number (attempt %d/%d)", attempt, c.queue.MaxAttempts)
		sleep(ctx, c.queue.Interval)
		if ctx.Err() != nil {
			return 0, false
		}
	}
	return 0, false
}

// queueItemURL turns the Location header, absolute or relative, into the
// queue item's JSON endpoint.
func (c *Client) queueItemURL(location string) string {
	if !strings.HasPrefix(location, "http") {
		if strings.HasPrefix(location, "/") {
			location = c.baseURL + location
		} else {
			location = c.baseURL + "/" + location
		}
	}
	return strings.TrimSuffix(location, "/") + "/api/json"
}
