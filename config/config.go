package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	LLM        LLMConfig        `yaml:"llm"`
	Chart      ChartConfig      `yaml:"chart"`
	Email      EmailConfig      `yaml:"email"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// GenerationConfig holds the idempotency and reuse windows for report generation.
type GenerationConfig struct {
	RetryWindowMinutes int           `yaml:"retry_window_minutes"`
	RetryWindow        time.Duration `yaml:"-"`
	MaxRetries         int           `yaml:"max_retries"`
	FreeReuseDays      int           `yaml:"free_reuse_days"`
	FreeReuseWindow    time.Duration `yaml:"-"`
	DedupCacheHours    int           `yaml:"dedup_cache_hours"`
	DedupCacheWindow   time.Duration `yaml:"-"`
}

// LLMConfig holds the settings for the chat-completions endpoint.
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ChartConfig holds the settings for the chart computation service.
type ChartConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

// EmailConfig holds the settings for the transactional email provider.
type EmailConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	From          string `yaml:"from"`
	ReportBaseURL string `yaml:"report_base_url"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size                 int           `yaml:"size"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Generation.RetryWindowMinutes <= 0 {
		cfg.Generation.RetryWindowMinutes = 10
	}
	if cfg.Generation.MaxRetries <= 0 {
		cfg.Generation.MaxRetries = 3
	}
	if cfg.Generation.FreeReuseDays <= 0 {
		cfg.Generation.FreeReuseDays = 7
	}
	if cfg.Generation.DedupCacheHours <= 0 {
		cfg.Generation.DedupCacheHours = 24
	}
	cfg.Generation.RetryWindow = time.Duration(cfg.Generation.RetryWindowMinutes) * time.Minute
	cfg.Generation.FreeReuseWindow = time.Duration(cfg.Generation.FreeReuseDays) * 24 * time.Hour
	cfg.Generation.DedupCacheWindow = time.Duration(cfg.Generation.DedupCacheHours) * time.Hour

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "doubao-pro-32k-241215"
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = 60
	}

	if cfg.Chart.TimeoutSeconds <= 0 {
		cfg.Chart.TimeoutSeconds = 30
	}

	if cfg.Email.BaseURL == "" {
		cfg.Email.BaseURL = "https://api.resend.com"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.SweepIntervalSeconds <= 0 {
		cfg.WorkerPool.SweepIntervalSeconds = 300
	}
	cfg.WorkerPool.SweepInterval = time.Duration(cfg.WorkerPool.SweepIntervalSeconds) * time.Second
}
