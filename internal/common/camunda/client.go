// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"syscall"
	"time"

	"loan-api/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gRPC client used by the loan workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	// RequestTimeout bounds a single broker call; zero leaves only the
	// caller's deadline.
	RequestTimeout time.Duration
	RetryConfig    *RetryConfig
}

// RetryConfig describes capped exponential backoff between broker calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// delay is the wait before retry number n (zero based).
func (r *RetryConfig) delay(n int) time.Duration {
	d := r.BaseDelay << uint(n)
	if d <= 0 || d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// NewClientWithConfig creates the client and verifies the broker answers a
// topology request before returning.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	_, err = c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return zeebeClient.NewTopologyCommand().Send(ctx)
	}, "topology")
	if err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return c, nil
}

// GetClient returns the raw Zeebe client for opening job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs call until it succeeds, fails permanently or the
// retry budget is spent. Each attempt gets RequestTimeout of its own.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	call func(context.Context) (interface{}, error),
	operation string,
) (interface{}, error) {
	return withRetry(ctx, c.config.RetryConfig, c.config.RequestTimeout, operation, call)
}

func withRetry(
	ctx context.Context,
	policy *RetryConfig,
	perAttempt time.Duration,
	operation string,
	call func(context.Context) (interface{}, error),
) (interface{}, error) {
	for attempt := 0; ; attempt++ {
		result, err := attemptOnce(ctx, perAttempt, call)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !transient(err) {
			return nil, brokerError(operation, attempt+1, err)
		}

		wait := time.NewTimer(policy.delay(attempt))
		select {
		case <-wait.C:
		case <-ctx.Done():
			wait.Stop()
			return nil, fmt.Errorf("zeebe %s abandoned after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
}

func attemptOnce(ctx context.Context, timeout time.Duration, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(ctx)
}

// transient reports whether a failed broker call is worth repeating: gateway
// unavailability, deadline expiry, backpressure and dropped connections.
func transient(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}
	return stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.EPIPE)
}

func timedOut(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded
}

// brokerError converts a final broker failure into a StandardError.
func brokerError(operation string, attempts int, err error) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempts: %w", operation, attempts, err)
	if timedOut(err) {
		return errors.NewTimeoutError("zeebe", wrapped)
	}
	return errors.NewExternalServiceError("zeebe", wrapped)
}
