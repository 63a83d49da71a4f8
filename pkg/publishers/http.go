package publishers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/wave-analyzer/pkg/httpclient"
)

const maxErrorBodyBytes = 512

// httpPublisher delivers events as JSON to a webhook. The report id is sent
// as Idempotency-Key so receivers can drop redeliveries.
type httpPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	c := *cfg.HTTP
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = httpDefaultTimeoutSeconds
	}
	if c.Method == "" {
		c.Method = httpDefaultMethod
	}

	client := httpclient.NewRestyHTTPClient(time.Duration(c.TimeoutSeconds) * time.Second)
	client.SetHeader("Content-Type", "application/json")
	if len(c.Headers) > 0 {
		client.SetHeaders(c.Headers)
	}

	return &httpPublisher{
		id:     cfg.ID,
		method: c.Method,
		url:    c.URL,
		client: client,
		log:    ensureLogger(log),
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", evt.ReportID).
		SetHeader("X-Report-Success", strconv.FormatBool(evt.Success)).
		SetBody(evt).
		Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("%s %s: %w", h.method, h.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: status %d: %s", h.method, h.url, resp.StatusCode(), bodySnippet(resp.Body()))
	}

	h.log.DebugObj("report delivered to webhook", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"report_id":    evt.ReportID,
		"status":       resp.StatusCode(),
		"elapsed":      resp.Time().String(),
	})
	return nil
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		s = s[:maxErrorBodyBytes] + "..."
	}
	return s
}
