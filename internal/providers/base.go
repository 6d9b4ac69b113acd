package providers

import (
	"context"
	"time"
)

// BaseProvider carries the retry policy shared by every concrete provider.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider builds a BaseProvider with sane defaults (3 retries,
// 1s linear backoff) that concrete providers embed.
func NewBaseProvider(name string) BaseProvider {
	return BaseProvider{name: name, maxRetries: 3, retryDelay: time.Second}
}

// Retry runs op, retrying while isRetryable(err) is true, up to maxRetries
// times with linear backoff. It does not retry rate-limit errors — those
// are the credential store's job to rotate and retry at the router layer.
func (b BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == b.maxRetries {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay * time.Duration(attempt+1)):
		}
	}
	return lastErr
}
