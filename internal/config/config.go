package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultUserAgent mimics a desktop Chrome build; some sites reject library clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ProvidersFile  string `mapstructure:"providers_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	MaxAlternatives   int  `mapstructure:"max_alternatives"`
	IncludeScraping   bool `mapstructure:"include_scraping"`
	ParallelProviders bool `mapstructure:"parallel_providers"`

	APITimeoutSeconds   int64         `mapstructure:"api_timeout_seconds"`
	ProbeTimeoutSeconds int64         `mapstructure:"probe_timeout_seconds"`
	PageTimeoutSeconds  int64         `mapstructure:"page_timeout_seconds"`
	APITimeout          time.Duration `mapstructure:"-"`
	ProbeTimeout        time.Duration `mapstructure:"-"`
	PageTimeout         time.Duration `mapstructure:"-"`
	UserAgent           string        `mapstructure:"user_agent"`
	BrowserTLS          bool          `mapstructure:"browser_tls"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	SQLitePath             string        `mapstructure:"sqlite_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	OutputDir string `mapstructure:"output_dir"`
	HTTPAddr  string `mapstructure:"http_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "logo-fetcher")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("providers_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("max_alternatives", 3)
	v.SetDefault("include_scraping", true)
	v.SetDefault("parallel_providers", false)
	v.SetDefault("api_timeout_seconds", 10)
	v.SetDefault("probe_timeout_seconds", 5)
	v.SetDefault("page_timeout_seconds", 15)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("browser_tls", false)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/history.db")
	v.SetDefault("sqlite_path", "./data/history.sqlite")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("output_dir", "./logos")
	v.SetDefault("http_addr", ":8080")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) finalize() error {
	if cfg.MaxAlternatives <= 0 {
		return fmt.Errorf("invalid max_alternatives (must be positive)")
	}
	if cfg.APITimeoutSeconds <= 0 {
		return fmt.Errorf("invalid api_timeout_seconds (must be positive seconds)")
	}
	if cfg.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid probe_timeout_seconds (must be positive seconds)")
	}
	if cfg.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid page_timeout_seconds (must be positive seconds)")
	}
	cfg.APITimeout = time.Duration(cfg.APITimeoutSeconds) * time.Second
	cfg.ProbeTimeout = time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
	cfg.PageTimeout = time.Duration(cfg.PageTimeoutSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return nil
}
