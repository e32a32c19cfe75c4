package ai

import (
	"context"
	"fmt"
	"time"
)

// Client is the embedding capability handed to services. A nil Client is a
// valid "not configured" client: Enabled reports false and Embed fails with
// ErrUnavailable, so semantic features can degrade instead of erroring.
type Client struct {
	embedder  IEmbedder
	dimension int
	timeout   time.Duration
}

func NewClient(embedder IEmbedder, dimension int, timeout time.Duration) *Client {
	return &Client{embedder: embedder, dimension: dimension, timeout: timeout}
}

func (c *Client) Enabled() bool {
	return c != nil && c.embedder != nil
}

func (c *Client) ModelName() string {
	if !c.Enabled() {
		return ""
	}
	return c.embedder.ModelName()
}

func (c *Client) Dimension() int {
	if c == nil {
		return 0
	}
	return c.dimension
}

func (c *Client) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if !c.Enabled() {
		return nil, ErrUnavailable
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	values, err := c.embedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if c.dimension > 0 && len(values) != c.dimension {
		return nil, fmt.Errorf("provider returned %d-dim vector, expected %d", len(values), c.dimension)
	}
	return values, nil
}
