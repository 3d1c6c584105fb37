// internal/blockchain/solbc/rpc/client.go
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	DefaultRetries = 3
	RetryDelay     = 250 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// Observer receives the outcome of every node call.
type Observer interface {
	ObserveRPC(method, endpoint string, latency time.Duration, err error)
}

// Client is a round-robin pool of Solana RPC nodes. Failed calls are retried
// on the next node with exponential backoff.
type Client struct {
	nodes    []*solanarpc.Client
	urls     []string
	current  int
	mu       sync.Mutex
	logger   *zap.Logger
	retries  uint
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets the total number of attempts per call.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = uint(n)
		}
	}
}

// WithObserver attaches a latency observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a pool over urls.
func NewClient(urls []string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}

	nodes := make([]*solanarpc.Client, len(urls))
	for i, url := range urls {
		nodes[i] = solanarpc.New(url)
	}

	c := &Client{
		nodes:   nodes,
		urls:    urls,
		logger:  logger.Named("rpc-client"),
		retries: DefaultRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) next() (*solanarpc.Client, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, url := c.nodes[c.current], c.urls[c.current]
	c.current = (c.current + 1) % len(c.nodes)
	return node, url
}

// Execute runs operation against the pool, rotating nodes between attempts.
func (c *Client) Execute(ctx context.Context, method string, operation func(*solanarpc.Client) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryDelay
	b.MaxInterval = maxRetryDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		node, url := c.next()

		start := time.Now()
		err := operation(node)
		if c.observer != nil {
			c.observer.ObserveRPC(method, url, time.Since(start), err)
		}
		if err == nil {
			return struct{}{}, nil
		}

		err = NewError(err, url, method)
		if !IsRetryableError(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		c.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retries),
	)
	return err
}

// Endpoints returns the configured node URLs.
func (c *Client) Endpoints() []string {
	out := make([]string, len(c.urls))
	copy(out, c.urls)
	return out
}
