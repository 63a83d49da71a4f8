package archive

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic key derivation
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/wave-analyzer/internal/domain"
)

// Package archive keeps the last raw report per analyzed URL so it can be
// inspected after the process exits.

// Store persists reports keyed by URL.
type Store interface {
	Close() error
	Save(rep domain.Report) error
	Lookup(url string) (domain.Report, bool, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	ReportTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultReportTTL       = 30 * 24 * time.Hour
	defaultCleanupInterval = 24 * time.Hour
)

// NewStore creates the configured archive backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt archive requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported archive type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = defaultReportTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// keyFor derives the storage key for a URL.
func keyFor(url string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

type noopStore struct{}

func (noopStore) Close() error                                { return nil }
func (noopStore) Save(domain.Report) error                    { return nil }
func (noopStore) Lookup(string) (domain.Report, bool, error) { return domain.Report{}, false, nil }
