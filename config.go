package erc

import (
	"time"

	"golang.org/x/text/encoding"
)

// Resolved configuration values. The exported fields on Client follow one
// convention: the zero value means "use the default," and a negative value
// disables or unbounds the setting where that makes sense.

func (c *Client) reconnectDelay() time.Duration {
	if c.ReconnectDelay <= 0 {
		return defaultReconnectDelay
	}
	return c.ReconnectDelay
}

func (c *Client) maxAttempts() int {
	if c.MaxReconnectAttempts == 0 {
		return defaultReconnectAttempts
	}
	return c.MaxReconnectAttempts
}

func (c *Client) pingInterval() time.Duration {
	switch {
	case c.PingInterval < 0:
		return 0 // disabled
	case c.PingInterval == 0:
		return defaultPingInterval
	default:
		return c.PingInterval
	}
}

func (c *Client) pingTimeout() time.Duration {
	switch {
	case c.PingTimeout < 0:
		return 0
	case c.PingTimeout == 0:
		return defaultPingTimeout
	default:
		return c.PingTimeout
	}
}

func (c *Client) duplicateWindow() time.Duration {
	if c.DuplicateWindow <= 0 {
		return defaultDuplicateWindow
	}
	return c.DuplicateWindow
}

func (c *Client) duplicateCommands() []string {
	if c.DuplicateCommands == nil {
		return defaultDuplicateCommands
	}
	return c.DuplicateCommands
}

func (c *Client) encodingFor(target string) encoding.Encoding {
	if c.Encoding == nil {
		return nil
	}
	return c.Encoding(target)
}
