package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyClientWithTransport creates a RestyClient on top of a custom RoundTripper.
func NewRestyClientWithTransport(timeout time.Duration, rt http.RoundTripper) *RestyClient {
	c := newRestyBaseClient(timeout)
	if rt != nil {
		c.SetTransport(rt)
	}
	return &RestyClient{client: c}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string, opts ...RequestOption) (Response, error) {
	return r.execute(ctx, http.MethodGet, url, headers, newRequestConfig(opts))
}

// Head performs an HTTP HEAD request; the returned body is always empty.
func (r *RestyClient) Head(ctx context.Context, url string, headers map[string]string, opts ...RequestOption) (Response, error) {
	return r.execute(ctx, http.MethodHead, url, headers, newRequestConfig(opts))
}

func (r *RestyClient) execute(ctx context.Context, method, url string, headers map[string]string, cfg requestConfig) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	// resty stops reading the wire once the limit is crossed
	if cfg.bodyLimit > 0 {
		req.SetResponseBodyLimit(cfg.bodyLimit)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, fmt.Errorf("%w: %s over %d bytes", ErrBodyTooLarge, url, cfg.bodyLimit)
		}
		return nil, err
	}
	body, err := decodeBody(resp.Header().Get("Content-Encoding"), resp.Body(), cfg.bodyLimit)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp, body: body}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
	body []byte
}

func (r *restyResponseAdapter) Body() []byte        { return r.body }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }
