package intel

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/semaphore"
)

// outboundClient issues HTTP requests under the process-wide cap on
// simultaneous outbound calls
type outboundClient struct {
	http     *http.Client
	outbound *semaphore.Weighted
}

// do runs fn with the response. The slot is held until fn returns since the
// body is read inside it.
func (c outboundClient) do(ctx context.Context, req *http.Request, fn func(*http.Response) error) error {
	if c.outbound != nil {
		if err := c.outbound.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("waiting for outbound slot: %w", err)
		}
		defer c.outbound.Release(1)
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	return fn(resp)
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w (HTTP %d)", ErrUnauthorized, resp.StatusCode)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}
}
