// Package wave is a client for the WebAIM WAVE accessibility analysis API.
//
// A Client carries the API key and the optional request parameters, sends one
// GET request per Analyze call through an injectable transport, and decodes
// the answer as JSON or XML. Failures reported by the service in the payload
// surface as *ServiceError.
//
// A Client is not safe for concurrent use; create one per goroutine.
package wave

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/wave-analyzer/pkg/httpclient"
)

const (
	// DefaultBaseURL is the root of the WAVE API.
	DefaultBaseURL = "https://wave.webaim.org/api/"

	requestPath    = "request"
	defaultTimeout = 30 * time.Second
	maxSnippetLen  = 512
)

// Client talks to the WAVE API.
type Client struct {
	apiKey    string
	settings  settings
	transport httpclient.Client
	baseURL   string
	sendZero  bool
	log       Logger

	lastBody   []byte
	lastResult Result
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithTransport replaces the default resty-backed transport. The client does
// not take ownership of it.
func WithTransport(t httpclient.Client) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = u
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// WithZeroValues makes explicitly set zero values (0, "") part of the request.
// By default they are omitted just like unset parameters.
func WithZeroValues() Option {
	return func(c *Client) { c.sendZero = true }
}

// New builds a client for apiKey with the optional params applied.
func New(apiKey string, params Params, opts ...Option) (*Client, error) {
	c := &Client{
		apiKey:   apiKey,
		settings: defaultSettings(),
		baseURL:  DefaultBaseURL,
		log:      noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.SetParams(params); err != nil {
		return nil, err
	}
	if c.transport == nil {
		c.transport = httpclient.NewRestyClient(defaultTimeout)
	}
	return c, nil
}

// APIKey returns the key sent with every request.
func (c *Client) APIKey() string { return c.apiKey }

// SetAPIKey replaces the key.
func (c *Client) SetAPIKey(key string) { c.apiKey = key }

// Transport returns the transport in use.
func (c *Client) Transport() httpclient.Client { return c.transport }

// SetTransport swaps the transport; nil is ignored.
func (c *Client) SetTransport(t httpclient.Client) {
	if t != nil {
		c.transport = t
	}
}

// Format returns the response format, json unless changed.
func (c *Client) Format() Format { return c.settings.format }

// SetFormat sets the response format; anything but json or xml fails with
// *InvalidParameterError.
func (c *Client) SetFormat(f Format) error {
	return applyFormat(&c.settings, f)
}

func (c *Client) ViewportWidth() (int, bool) { return c.settings.viewportWidth.get() }
func (c *Client) SetViewportWidth(w int)     { c.settings.viewportWidth = some(w) }
func (c *Client) EvalDelay() (int, bool)     { return c.settings.evalDelay.get() }
func (c *Client) SetEvalDelay(d int)         { c.settings.evalDelay = some(d) }

func (c *Client) ReportType() (ReportType, bool) { return c.settings.reportType.get() }

// SetReportType sets the report detail level; values outside 1..3 fail with
// *InvalidParameterError.
func (c *Client) SetReportType(rt ReportType) error {
	return applyReportType(&c.settings, rt)
}

func (c *Client) Username() (string, bool) { return c.settings.username.get() }
func (c *Client) SetUsername(u string)     { c.settings.username = some(u) }
func (c *Client) Password() (string, bool) { return c.settings.password.get() }
func (c *Client) SetPassword(p string)     { c.settings.password = some(p) }

// SetParams applies a batch of parameters. Every entry is validated before
// any is stored: on error the client is left as it was.
func (c *Client) SetParams(params Params) error {
	next, err := c.settings.with(params)
	if err != nil {
		return err
	}
	c.settings = next
	return nil
}

// LastResponse returns the raw body of the most recent response, including
// responses that failed to decode or reported an error.
func (c *Client) LastResponse() []byte { return c.lastBody }

// LastResult returns the most recent successfully decoded result.
func (c *Client) LastResult() Result { return c.lastResult }

// Analyze requests a report for target. params override the client's
// configuration for this call only and are not stored on the client; call
// SetParams to change the defaults.
func (c *Client) Analyze(ctx context.Context, target string, params Params) (Result, error) {
	cfg, err := c.settings.with(params)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := cfg.query(target, c.apiKey, c.sendZero)
	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + requestPath

	c.log.DebugObj("wave request dispatched", "wave_request", map[string]any{
		"endpoint": endpoint,
		"url":      target,
		"format":   string(cfg.format),
		"params":   query.Names(),
	})

	resp, err := c.transport.Get(ctx, endpoint, query, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	body := resp.Body()
	c.lastBody = body
	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, &TransportError{StatusCode: code, Body: responseSnippet(body)}
	}

	result, err := decoderFor(cfg.format).decode(body)
	if err != nil {
		return nil, err
	}
	if msg, failed := result.failure(); failed {
		c.log.DebugObj("wave service reported failure", "wave_failure", map[string]any{
			"url":   target,
			"error": msg,
		})
		return nil, &ServiceError{Message: msg}
	}

	c.lastResult = result
	return result, nil
}

func responseSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippetLen {
		return s[:maxSnippetLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
