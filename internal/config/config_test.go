package config

import (
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/wave-analyzer/pkg/wave"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q", cfg.Format)
	}
	if cfg.BaseURL != wave.DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.ViewportWidth != nil || cfg.EvalDelay != nil || cfg.ReportType != nil {
		t.Errorf("optional ints should be unset by default")
	}
	if cfg.ArchiveType != "bbolt" || cfg.ArchiveTTL != 30*24*time.Hour {
		t.Errorf("unexpected archive defaults %q %v", cfg.ArchiveType, cfg.ArchiveTTL)
	}

	params := cfg.WaveParams()
	if len(params) != 1 || params["format"] != "json" {
		t.Errorf("WaveParams = %#v", params)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WAVE_API_KEY", " secret ")
	t.Setenv("WAVE_FORMAT", "XML")
	t.Setenv("WAVE_VIEWPORTWIDTH", "1440")
	t.Setenv("WAVE_EVALDELAY", "0")
	t.Setenv("WAVE_REPORTTYPE", "2")
	t.Setenv("WAVE_USERNAME", "Geralt")
	t.Setenv("WAVE_SEND_ZERO_VALUES", "true")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if !cfg.SendZeroValues {
		t.Errorf("SendZeroValues not loaded")
	}

	params := cfg.WaveParams()
	if params["format"] != "xml" || params["viewportwidth"] != 1440 || params["evaldelay"] != 0 || params["reporttype"] != 2 {
		t.Errorf("WaveParams = %#v", params)
	}
	if params["username"] != "Geralt" {
		t.Errorf("username = %v", params["username"])
	}
	if _, ok := params["password"]; ok {
		t.Errorf("empty password should be omitted")
	}

	if _, err := wave.New(cfg.APIKey, params); err != nil {
		t.Errorf("config params rejected by client: %v", err)
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("WAVE_FORMAT", "xml")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--format", "json", "--reporttype", "3", "--page-meta"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q want json", cfg.Format)
	}
	if cfg.ReportType == nil || *cfg.ReportType != 3 {
		t.Errorf("ReportType = %v", cfg.ReportType)
	}
	if !cfg.PageMeta {
		t.Errorf("PageMeta flag ignored")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"WAVE_FORMAT":             "csv",
		"WAVE_VIEWPORTWIDTH":      "wide",
		"WAVE_REPORTTYPE":         "4",
		"REQUEST_TIMEOUT_SECONDS": "0",
		"ARCHIVE_TTL_SECONDS":     "-1",
		"REQUEST_RETRIES":         "-1",
	}
	for env, val := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			if _, err := Load(nil); err == nil {
				t.Fatalf("expected error for %s=%s", env, val)
			}
		})
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Config{APIKey: "secret", Password: "of Rivia", Username: "Geralt"}
	red := cfg.Redacted()
	if strings.Contains(red.APIKey, "secret") || strings.Contains(red.Password, "Rivia") {
		t.Fatalf("secrets leaked: %+v", red)
	}
	if red.Username != "Geralt" {
		t.Fatalf("non-secret fields should be kept")
	}
	if cfg.APIKey != "secret" {
		t.Fatalf("Redacted must not modify the receiver")
	}
}
