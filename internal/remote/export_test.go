package remote

import "time"

// SetRetryDelay shortens backoff in tests.
func (c *Client) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}
