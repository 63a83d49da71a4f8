package pagemeta

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/wave-analyzer/internal/domain"
	"github.com/samvad-hq/wave-analyzer/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	maxSnippetBytes  = 1024
)

// Collector fetches the analyzed page and extracts the metadata that matters
// for an accessibility report: title, document language and description.
type Collector struct {
	client  httpclient.Client
	headers map[string]string
}

// NewCollector constructs a collector with the provided HTTP client.
func NewCollector(client httpclient.Client, headers map[string]string) *Collector {
	return &Collector{client: client, headers: headers}
}

// Collect fetches url and parses its metadata.
func (c *Collector) Collect(ctx context.Context, url string) (domain.PageMeta, error) {
	if c == nil || c.client == nil {
		return domain.PageMeta{}, fmt.Errorf("page metadata collector is not initialized")
	}

	resp, err := c.client.Get(ctx, url, nil, c.headers)
	if err != nil {
		return domain.PageMeta{}, fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > maxSnippetBytes {
			snippet = snippet[:maxSnippetBytes]
		}
		return domain.PageMeta{}, fmt.Errorf("status %d body: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	return parseMeta(body)
}

func parseMeta(body []byte) (domain.PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.PageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	lang, _ := doc.Find("html").First().Attr("lang")

	return domain.PageMeta{
		Title: firstNonEmpty(
			doc.Find("title").First().Text(),
			extract(`meta[property="og:title"]`),
		),
		Lang: strings.TrimSpace(lang),
		Description: firstNonEmpty(
			extract(`meta[name="description"]`),
			extract(`meta[property="og:description"]`),
		),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
