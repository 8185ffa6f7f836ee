// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs the crawl-and-extract pipeline.
type ScraperConfig struct {
	BaseURL               string   `mapstructure:"base_url"`
	Classification        string   `mapstructure:"classification"`
	ClassificationSlug    string   `mapstructure:"classification_slug"`
	SubclassificationIDs  string   `mapstructure:"subclassification_ids"`
	DateRangeDays         int      `mapstructure:"date_range_days"`
	ExcludedSubcategories []string `mapstructure:"excluded_subcategories"`
	ExcludedCompanies     []string `mapstructure:"excluded_companies"`
	MaxPages              int      `mapstructure:"max_pages"`
	UserAgent             string   `mapstructure:"user_agent"`
	WaitTimeoutSeconds    int      `mapstructure:"wait_timeout_seconds"`
	SettleDelayMs         int      `mapstructure:"settle_delay_ms"`
	PagesPerSecond        float64  `mapstructure:"pages_per_second"`
	Fetcher               string   `mapstructure:"fetcher"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// JobsConfig controls the background run loop.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// StorageConfig selects and parameterizes the record and seen stores.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"`
	RecordsPath   string `mapstructure:"records_path"`
	SeenPath      string `mapstructure:"seen_path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig selects where rendered page snapshots are written.
type ArchiveConfig struct {
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// WebhookConfig controls outbound webhook delivery.
type WebhookConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEEK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("scraper.base_url", "https://www.seek.com.au")
	v.SetDefault("scraper.classification", "Human Resources & Recruitment")
	v.SetDefault("scraper.classification_slug", "jobs-in-human-resources-recruitment")
	v.SetDefault("scraper.date_range_days", 3)
	v.SetDefault("scraper.excluded_subcategories", []string{"Recruitment - Agency"})
	v.SetDefault("scraper.max_pages", 20)
	v.SetDefault("scraper.wait_timeout_seconds", 10)
	v.SetDefault("scraper.settle_delay_ms", 2000)
	v.SetDefault("scraper.pages_per_second", 0.5)
	v.SetDefault("scraper.fetcher", "headless")
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_depth", 16)
	v.SetDefault("storage.provider", "json")
	v.SetDefault("storage.records_path", "data/jobs.json")
	v.SetDefault("storage.seen_path", "data/seen_jobs.json")
	v.SetDefault("storage.retention_days", 30)
	v.SetDefault("db.table", "listings")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("webhook.timeout_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if c.Scraper.MaxPages <= 0 {
		return fmt.Errorf("scraper.max_pages must be > 0")
	}
	switch c.Scraper.Fetcher {
	case "headless", "static":
	default:
		return fmt.Errorf("scraper.fetcher must be headless or static, got %q", c.Scraper.Fetcher)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	switch c.Storage.Provider {
	case "json", "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.Storage.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when storage.provider is postgres")
	}
	switch c.Archive.Provider {
	case "none", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SearchURL builds the listings search URL from the classification slug plus
// optional date-range and subclassification filters.
func (c ScraperConfig) SearchURL() string {
	base := strings.TrimRight(c.BaseURL, "/") + "/" + c.ClassificationSlug

	var params []string
	if c.DateRangeDays > 0 {
		params = append(params, fmt.Sprintf("daterange=%d", c.DateRangeDays))
	}
	if c.SubclassificationIDs != "" {
		params = append(params, "subclassification="+url.QueryEscape(c.SubclassificationIDs))
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + strings.Join(params, "&")
}

// WaitTimeout is the bounded wait for the listings container.
func (c ScraperConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// SettleDelay is the pause after navigation before extraction.
func (c ScraperConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// Retention is the dedup/prune window.
func (c StorageConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
