package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// Option tunes the underlying resty client.
type Option func(*resty.Client)

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.SetHeader("User-Agent", ua)
		}
	}
}

// WithRetries retries connection failures, 429 and 5xx responses up to n
// times with a backoff starting at wait.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *resty.Client) {
		if n <= 0 {
			return
		}
		c.SetRetryCount(n).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(wait * 8).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				code := resp.StatusCode()
				return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
			})
	}
}

// NewRestyClient creates a RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, opts...)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration, opts ...Option) *resty.Client {
	return newRestyBaseClient(timeout, opts...)
}

func newRestyBaseClient(timeout time.Duration, opts ...Option) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get sends a GET with query appended in order. Non-2xx statuses are
// returned as responses, not errors.
func (r *RestyClient) Get(ctx context.Context, url string, query Query, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(withQuery(url, query))
	if err != nil {
		return nil, err
	}
	return restyResponse{resp}, nil
}

type restyResponse struct{ *resty.Response }

// withQuery appends the encoded query to url. resty's own query helpers go
// through url.Values, which sorts keys.
func withQuery(url string, query Query) string {
	if len(query) == 0 {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + query.Encode()
}
