// Package timeout bounds every LLM call with a per-request deadline so a hung
// provider cannot stall a dialogue turn indefinitely.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nestwise/pkg/llm"
	"nestwise/pkg/llm/llmerrors"
)

// Client wraps an llm.Client with a fixed per-call timeout.
type Client struct {
	inner   llm.Client
	timeout time.Duration
}

// Wrap applies timeout to every Complete call on client. A non-positive
// timeout disables the wrapper's deadline.
func Wrap(client llm.Client, timeout time.Duration) *Client {
	return &Client{inner: client, timeout: timeout}
}

// GetModelName returns the wrapped client's model.
func (c *Client) GetModelName() string {
	return c.inner.GetModelName()
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.inner.Complete(ctx, in)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.ErrorTypeUnavailable,
			fmt.Errorf("llm call exceeded %s deadline: %w", c.timeout, err))
	}
	return resp, err
}
