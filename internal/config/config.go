package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samvad-hq/wave-analyzer/pkg/wave"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, environment
// variables and the optional .env file.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIKey                string        `mapstructure:"wave_api_key"`
	BaseURL               string        `mapstructure:"wave_base_url"`
	Format                string        `mapstructure:"wave_format"`
	ViewportWidthRaw      string        `mapstructure:"wave_viewportwidth"`
	EvalDelayRaw          string        `mapstructure:"wave_evaldelay"`
	ReportTypeRaw         string        `mapstructure:"wave_reporttype"`
	Username              string        `mapstructure:"wave_username"`
	Password              string        `mapstructure:"wave_password"`
	SendZeroValues        bool          `mapstructure:"wave_send_zero_values"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestRetries        int           `mapstructure:"request_retries"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	ViewportWidth         *int          `mapstructure:"-"`
	EvalDelay             *int          `mapstructure:"-"`
	ReportType            *int          `mapstructure:"-"`

	SinksFile string `mapstructure:"sinks_file"`

	ArchiveType            string        `mapstructure:"archive_type"`
	ArchivePath            string        `mapstructure:"archive_path"`
	ArchiveTTLSeconds      int64         `mapstructure:"archive_ttl_seconds"`
	ArchiveCleanupSeconds  int64         `mapstructure:"archive_cleanup_interval_seconds"`
	ArchiveTTL             time.Duration `mapstructure:"-"`
	ArchiveCleanupInterval time.Duration `mapstructure:"-"`

	PageMeta bool `mapstructure:"page_meta"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"format":        "wave_format",
	"viewportwidth": "wave_viewportwidth",
	"evaldelay":     "wave_evaldelay",
	"reporttype":    "wave_reporttype",
	"username":      "wave_username",
	"password":      "wave_password",
	"zero-values":   "wave_send_zero_values",
	"base-url":      "wave_base_url",
	"sinks":         "sinks_file",
	"archive":       "archive_path",
	"page-meta":     "page_meta",
	"log-level":     "log_level",
	"retries":       "request_retries",
}

// RegisterFlags declares the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("format", "", "response format: json or xml")
	fs.String("viewportwidth", "", "viewport width in pixels")
	fs.String("evaldelay", "", "delay in milliseconds before evaluation")
	fs.String("reporttype", "", "report detail level: 1, 2 or 3")
	fs.String("username", "", "HTTP basic auth username for the analyzed page")
	fs.String("password", "", "HTTP basic auth password for the analyzed page")
	fs.Bool("zero-values", false, "send parameters explicitly set to 0")
	fs.String("base-url", "", "WAVE API base URL")
	fs.String("sinks", "", "report sinks file (YAML or JSON)")
	fs.String("archive", "", "report archive path")
	fs.Bool("page-meta", false, "collect title and language of the analyzed page")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Int("retries", 0, "retries for failed or 5xx/429 requests")
}

// Load reads configuration from environment variables and, when fs is not
// nil, from the flags registered with RegisterFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "wave-analyzer")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("wave_api_key", "")
	v.SetDefault("wave_base_url", wave.DefaultBaseURL)
	v.SetDefault("wave_format", string(wave.FormatJSON))
	v.SetDefault("wave_viewportwidth", "")
	v.SetDefault("wave_evaldelay", "")
	v.SetDefault("wave_reporttype", "")
	v.SetDefault("wave_username", "")
	v.SetDefault("wave_password", "")
	v.SetDefault("wave_send_zero_values", false)
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("request_retries", 0)
	v.SetDefault("sinks_file", "")
	v.SetDefault("archive_type", "bbolt")
	v.SetDefault("archive_path", "./data/reports.db")
	v.SetDefault("archive_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("archive_cleanup_interval_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("page_meta", false)

	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = string(wave.FormatJSON)
	}
	if !wave.Format(cfg.Format).Valid() {
		return fmt.Errorf("invalid wave_format %q (must be json or xml)", cfg.Format)
	}

	var err error
	if cfg.ViewportWidth, err = optionalInt("wave_viewportwidth", cfg.ViewportWidthRaw); err != nil {
		return err
	}
	if cfg.EvalDelay, err = optionalInt("wave_evaldelay", cfg.EvalDelayRaw); err != nil {
		return err
	}
	if cfg.ReportType, err = optionalInt("wave_reporttype", cfg.ReportTypeRaw); err != nil {
		return err
	}
	if cfg.ReportType != nil && !wave.ReportType(*cfg.ReportType).Valid() {
		return fmt.Errorf("invalid wave_reporttype %d (must be 1, 2 or 3)", *cfg.ReportType)
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if cfg.RequestRetries < 0 {
		return fmt.Errorf("invalid request_retries %d (must not be negative)", cfg.RequestRetries)
	}

	cfg.ArchiveType = strings.ToLower(strings.TrimSpace(cfg.ArchiveType))
	if cfg.ArchiveTTLSeconds <= 0 {
		return fmt.Errorf("invalid archive_ttl_seconds (must be positive seconds)")
	}
	if cfg.ArchiveCleanupSeconds <= 0 {
		return fmt.Errorf("invalid archive_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.ArchiveTTL = time.Duration(cfg.ArchiveTTLSeconds) * time.Second
	cfg.ArchiveCleanupInterval = time.Duration(cfg.ArchiveCleanupSeconds) * time.Second

	cfg.SinksFile = strings.TrimSpace(cfg.SinksFile)
	return nil
}

func optionalInt(key, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q (must be an integer)", key, raw)
	}
	return &n, nil
}

// WaveParams returns the configured request parameters. Unset values are left
// out so the client keeps its own defaults.
func (cfg *Config) WaveParams() wave.Params {
	params := wave.Params{
		string(wave.ParamFormat): cfg.Format,
	}
	if cfg.ViewportWidth != nil {
		params[string(wave.ParamViewportWidth)] = *cfg.ViewportWidth
	}
	if cfg.EvalDelay != nil {
		params[string(wave.ParamEvalDelay)] = *cfg.EvalDelay
	}
	if cfg.ReportType != nil {
		params[string(wave.ParamReportType)] = *cfg.ReportType
	}
	if cfg.Username != "" {
		params[string(wave.ParamUsername)] = cfg.Username
	}
	if cfg.Password != "" {
		params[string(wave.ParamPassword)] = cfg.Password
	}
	return params
}

// Redacted returns a copy safe to log.
func (cfg Config) Redacted() Config {
	if cfg.APIKey != "" {
		cfg.APIKey = "***"
	}
	if cfg.Password != "" {
		cfg.Password = "***"
	}
	return cfg
}
