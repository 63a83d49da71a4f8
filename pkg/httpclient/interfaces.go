package httpclient

import "context"

// Response is what callers need from a finished request.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client performs GET requests. query may be nil; its order is preserved on
// the wire. Implementations return non-2xx responses without an error.
type Client interface {
	Get(ctx context.Context, url string, query Query, headers map[string]string) (Response, error)
}
