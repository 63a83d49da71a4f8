package app

import (
	"context"
	"crypto/sha1" //nolint:gosec // report ids only need to be unique
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/wave-analyzer/internal/archive"
	"github.com/samvad-hq/wave-analyzer/internal/config"
	"github.com/samvad-hq/wave-analyzer/internal/domain"
	"github.com/samvad-hq/wave-analyzer/internal/logger"
	"github.com/samvad-hq/wave-analyzer/internal/pagemeta"
	"github.com/samvad-hq/wave-analyzer/pkg/httpclient"
	"github.com/samvad-hq/wave-analyzer/pkg/publishers"
	"github.com/samvad-hq/wave-analyzer/pkg/wave"
)

// ErrMissingAPIKey is returned by Analyze when no WAVE API key is configured.
var ErrMissingAPIKey = errors.New("wave api key is not configured")

const (
	userAgent = "wave-analyzer/1.0"
	retryWait = 500 * time.Millisecond
)

var pageHeaders = map[string]string{
	"Accept": "text/html,application/xhtml+xml",
}

// Analyzer runs one analysis end to end: it calls the WAVE API, optionally
// collects page metadata, archives the outcome and publishes it to the
// configured sinks.
type Analyzer struct {
	cfg    *config.Config
	client *wave.Client
	store  archive.Store
	fanout *publishers.Fanout
	meta   *pagemeta.Collector
	log    logger.Logger
	now    func() time.Time
}

// NewAnalyzer builds the runtime from config. The WAVE client is only created
// when an API key is present so that archived reports stay readable without one.
func NewAnalyzer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Analyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a := &Analyzer{cfg: cfg, log: log, now: time.Now}
	transport := httpclient.NewRestyClient(cfg.RequestTimeout,
		httpclient.WithUserAgent(userAgent),
		httpclient.WithRetries(cfg.RequestRetries, retryWait),
	)

	if cfg.APIKey != "" {
		opts := []wave.Option{
			wave.WithBaseURL(cfg.BaseURL),
			wave.WithLogger(log),
			wave.WithTransport(transport),
		}
		if cfg.SendZeroValues {
			opts = append(opts, wave.WithZeroValues())
		}
		client, err := wave.New(cfg.APIKey, cfg.WaveParams(), opts...)
		if err != nil {
			return nil, fmt.Errorf("init wave client: %w", err)
		}
		a.client = client
	}

	store, err := archive.NewStore(cfg.ArchiveType, cfg.ArchivePath, archive.Options{
		ReportTTL:       cfg.ArchiveTTL,
		CleanupInterval: cfg.ArchiveCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	a.store = store
	log.DebugObj("archive initialized", "archive_config", map[string]any{
		"type":                     cfg.ArchiveType,
		"path":                     cfg.ArchivePath,
		"report_ttl_seconds":       int(cfg.ArchiveTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.ArchiveCleanupInterval.Seconds()),
	})

	if cfg.SinksFile != "" {
		fanout, err := buildFanout(ctx, cfg.SinksFile, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.fanout = fanout
	}

	if cfg.PageMeta {
		a.meta = pagemeta.NewCollector(transport, pageHeaders)
	}

	return a, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}

	enabled := reg.Enabled()
	pubs, err := publishers.DefaultRegistry().BuildAll(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.DebugObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Analyze requests a report for target. A failure reported by the service is
// still archived and published before the *wave.ServiceError is returned;
// transport and decode failures are returned without side effects.
func (a *Analyzer) Analyze(ctx context.Context, target string) (domain.Report, error) {
	if a == nil || a.client == nil {
		return domain.Report{}, ErrMissingAPIKey
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return domain.Report{}, fmt.Errorf("target url must not be empty")
	}

	started := a.now().UTC()
	_, err := a.client.Analyze(ctx, target, nil)

	var svcErr *wave.ServiceError
	if err != nil && !errors.As(err, &svcErr) {
		return domain.Report{}, fmt.Errorf("analyze %s: %w", target, err)
	}

	rep := domain.Report{
		ID:         reportID(target, started),
		URL:        target,
		Format:     string(a.client.Format()),
		Success:    svcErr == nil,
		Body:       a.client.LastResponse(),
		AnalyzedAt: started,
	}
	if svcErr != nil {
		rep.ServiceMessage = svcErr.Message
	}

	if a.meta != nil {
		page, metaErr := a.meta.Collect(ctx, target)
		if metaErr != nil {
			a.log.WarnObj("page metadata unavailable", "pagemeta_error", map[string]any{
				"url":   target,
				"error": metaErr.Error(),
			})
		} else {
			rep.Page = &page
		}
	}

	if saveErr := a.store.Save(rep); saveErr != nil {
		a.log.WarnObj("failed to archive report", "archive_error", map[string]any{
			"report_id": rep.ID,
			"error":     saveErr.Error(),
		})
	}

	if a.fanout.Size() > 0 {
		sent, pubErr := a.fanout.Publish(ctx, publishers.NewEvent(rep))
		if pubErr != nil {
			a.log.ErrorObj("report publish failed", "publish_error", map[string]any{
				"report_id": rep.ID,
				"delivered": sent,
				"sinks":     a.fanout.Size(),
				"error":     pubErr.Error(),
			})
		}
	}

	a.log.InfoObj("analysis finished", "analysis", map[string]any{
		"report_id": rep.ID,
		"url":       rep.URL,
		"format":    rep.Format,
		"success":   rep.Success,
		"duration":  a.now().Sub(started).String(),
	})

	if svcErr != nil {
		return rep, fmt.Errorf("analyze %s: %w", target, err)
	}
	return rep, nil
}

// Show returns the archived report for target without calling the service.
func (a *Analyzer) Show(target string) (domain.Report, bool, error) {
	if a == nil || a.store == nil {
		return domain.Report{}, false, fmt.Errorf("analyzer is not initialized")
	}
	return a.store.Lookup(strings.TrimSpace(target))
}

// Close releases sinks and the archive.
func (a *Analyzer) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if err := a.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	return errors.Join(errs...)
}

func reportID(target string, at time.Time) string {
	sum := sha1.Sum([]byte(target + "|" + strconv.FormatInt(at.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])
}
