package jenkins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Terminal build results reported by Jenkins.
const (
	ResultSuccess  = "SUCCESS"
	ResultFailure  = "FAILURE"
	ResultAborted  = "ABORTED"
	ResultUnstable = "UNSTABLE"
)

// BuildRef identifies the build to track: a concrete number, or the job's
// latest build when the queue never yielded one.
type BuildRef struct {
	Number int
	Latest bool
}

// LatestBuild refers to whatever build of the job is newest.
func LatestBuild() BuildRef {
	return BuildRef{Latest: true}
}

func (r BuildRef) String() string {
	if r.Latest {
		return "lastBuild"
	}
	return fmt.Sprintf("#%d", r.Number)
}

// path is the URL segment selecting this build under /job/{name}/.
func (r BuildRef) path() string {
	if r.Latest {
		return "lastBuild"
	}
	return strconv.Itoa(r.Number)
}

// BuildStatus is a point-in-time snapshot of one build. A build is terminal
// once Building is false and Result is set.
type BuildStatus struct {
	Number   int    `json:"number"`
	Building bool   `json:"building"`
	Result   string `json:"result"`
	URL      string `json:"url"`
}

// Terminal reports whether the build finished with a result.
func (s *BuildStatus) Terminal() bool {
	return !s.Building && s.Result != ""
}

// BuildStatus fetches the current snapshot of the referenced build.
func (c *Client) BuildStatus(ctx context.Context, job string, ref BuildRef) (*BuildStatus, error) {
	statusURL := fmt.Sprintf("%s/job/%s/%s/api/json", c.baseURL, url.PathEscape(job), ref.path())

	var status BuildStatus
	if err := c.getJSON(ctx, statusURL, &status); err != nil {
		return nil, fmt.Errorf("status %s %s: %w", job, ref, err)
	}
	return &status, nil
}

// TestConnection probes the controller root API and logs its version.
func (c *Client) TestConnection(ctx context.Context) error {
	c.logger.Infof("testing Jenkins connection: %s", c.baseURL)

	var root struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/json", &root); err != nil {
		return fmt.Errorf("connect to %s: %w", c.baseURL, err)
	}

	if root.Version == "" {
		root.Version = "unknown"
	}
	c.logger.Infof("Jenkins reachable, version: %s", root.Version)
	return nil
}

// StopBuild asks Jenkins to abort the referenced build. Jenkins answers a
// stop with 200, 201 or a 302 redirect.
func (c *Client) StopBuild(ctx context.Context, job string, ref BuildRef) error {
	stopURL := fmt.Sprintf("%s/job/%s/%s/stop", c.baseURL, url.PathEscape(job), ref.path())

	resp, err := c.postForm(ctx, stopURL, url.Values{})
	if err != nil {
		return fmt.Errorf("stop %s %s: %w", job, ref, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusFound:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stop %s %s: unexpected status %s: %s", job, ref, resp.Status, body)
	}
}
