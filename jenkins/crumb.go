package jenkins

import "context"

// Crumb is the CSRF token pair Jenkins hands out via the crumb issuer.
type Crumb struct {
	RequestField string `json:"crumbRequestField"`
	Value        string `json:"crumb"`
}

// ResolveCrumb fetches the CSRF crumb once and caches it on the client.
// Older controllers run without CSRF protection, so failure only logs a
// warning. No retries.
func (c *Client) ResolveCrumb(ctx context.Context) {
	var crumb Crumb
	if err := c.getJSON(ctx, c.baseURL+"/crumbIssuer/api/json", &crumb); err != nil {
		c.logger.Warnf("crumb unavailable, continuing without CSRF token: %v", err)
		return
	}
	c.crumb = &crumb
	c.logger.Infof("obtained Jenkins crumb: %s", crumb.RequestField)
}

// HasCrumb reports whether a crumb was resolved.
func (c *Client) HasCrumb() bool {
	return c.crumb != nil
}
