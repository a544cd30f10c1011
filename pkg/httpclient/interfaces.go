package httpclient

import (
	"context"
	"errors"
	"net/http"
)

// ErrBodyTooLarge is returned when a response body, raw or decoded, exceeds
// the limit set with WithBodyLimit.
var ErrBodyTooLarge = errors.New("response body too large")

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string, opts ...RequestOption) (Response, error)
	Head(ctx context.Context, url string, headers map[string]string, opts ...RequestOption) (Response, error)
}

// RequestOption tunes a single request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	bodyLimit int
}

// WithBodyLimit aborts the body read once more than n bytes arrive. Values
// <= 0 keep the client default.
func WithBodyLimit(n int) RequestOption {
	return func(c *requestConfig) { c.bodyLimit = n }
}

func newRequestConfig(opts []RequestOption) requestConfig {
	var cfg requestConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
