package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/notify"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/pkg/utils"
)

var ErrInvalidConfig = errors.New("config: invalid")

// BEO is how the dashboard reaches the backend API
type BEO struct {
	BaseURL       *url.URL
	SessionCookie string
	Timeout       time.Duration
	PageSize      int
}

// Config is the resolved dashboard configuration
type Config struct {
	Listen          string
	StaticDir       string
	BEO             BEO
	PollInterval    time.Duration
	NotificationTTL time.Duration
	JournalPath     string
	LogLevel        string
	LogFormat       string
	Retry           model.RetryConfig
}

// Default returns the configuration used when no file is given
func Default() *Config {
	u, _ := url.Parse("http://localhost:8000/")
	return &Config{
		Listen:          ":8080",
		StaticDir:       "web/dist",
		BEO:             BEO{BaseURL: u, Timeout: 30 * time.Second, PageSize: 50},
		PollInterval:    poller.DefaultInterval,
		NotificationTTL: notify.DefaultTTL,
		JournalPath:     "dashboard.db",
		LogLevel:        "info",
		LogFormat:       "CONSOLE",
		Retry:           model.DefaultRetryConfig,
	}
}

type rawRetry struct {
	MaxAttempts    *int     `yaml:"max_attempts"`
	InitialDelay   string   `yaml:"initial_delay"`
	MaxDelay       string   `yaml:"max_delay"`
	MaxElapsedTime string   `yaml:"max_elapsed_time"`
	BackoffFactor  *float64 `yaml:"backoff_factor"`
}

type rawConfig struct {
	Listen    string `yaml:"listen"`
	StaticDir string `yaml:"static_dir"`
	BEO       struct {
		URL           string `yaml:"url"`
		SessionCookie string `yaml:"session_cookie"`
		Timeout       string `yaml:"timeout"`
		PageSize      int    `yaml:"page_size"`
	} `yaml:"beo"`
	PollInterval    string `yaml:"poll_interval"`
	NotificationTTL string `yaml:"notification_ttl"`
	Journal         string `yaml:"journal"`
	Logging         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Retry rawRetry `yaml:"retry"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := rawConfig{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return c.apply(raw)
}

func (c *Config) apply(raw rawConfig) error {
	if raw.Listen != "" {
		c.Listen = raw.Listen
	}
	if raw.StaticDir != "" {
		c.StaticDir = raw.StaticDir
	}
	if raw.BEO.URL != "" {
		if err := c.setBEOURL(raw.BEO.URL); err != nil {
			return err
		}
	}
	if raw.BEO.SessionCookie != "" {
		c.BEO.SessionCookie = raw.BEO.SessionCookie
	}
	c.BEO.Timeout = utils.ParseDuration(raw.BEO.Timeout, c.BEO.Timeout)
	if raw.BEO.PageSize < 0 {
		return fmt.Errorf("%w: beo.page_size must not be negative", ErrInvalidConfig)
	}
	if raw.BEO.PageSize > 0 {
		c.BEO.PageSize = raw.BEO.PageSize
	}
	c.PollInterval = utils.ParseDuration(raw.PollInterval, c.PollInterval)
	c.NotificationTTL = utils.ParseDuration(raw.NotificationTTL, c.NotificationTTL)
	if raw.Journal != "" {
		c.JournalPath = raw.Journal
	}
	if raw.Logging.Level != "" {
		c.LogLevel = raw.Logging.Level
	}
	if raw.Logging.Format != "" {
		c.LogFormat = raw.Logging.Format
	}

	if raw.Retry.MaxAttempts != nil {
		c.Retry.MaxAttempts = *raw.Retry.MaxAttempts
	}
	c.Retry.InitialDelay = utils.ParseDuration(raw.Retry.InitialDelay, c.Retry.InitialDelay)
	c.Retry.MaxDelay = utils.ParseDuration(raw.Retry.MaxDelay, c.Retry.MaxDelay)
	c.Retry.MaxElapsedTime = utils.ParseDuration(raw.Retry.MaxElapsedTime, c.Retry.MaxElapsedTime)
	if raw.Retry.BackoffFactor != nil {
		if *raw.Retry.BackoffFactor < 1 {
			return fmt.Errorf("%w: retry.backoff_factor must be at least 1", ErrInvalidConfig)
		}
		c.Retry.BackoffFactor = *raw.Retry.BackoffFactor
	}
	return nil
}

func (c *Config) setBEOURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: beo.url: %v", ErrInvalidConfig, err)
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return fmt.Errorf("%w: beo.url must be absolute: %s", ErrInvalidConfig, s)
	}
	c.BEO.BaseURL = u
	return nil
}

// Load reads the YAML file at path on top of the defaults, then applies DASHBOARD_* environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(buf, conf); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := conf.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	raw := rawConfig{}
	if v, ok := lookup("DASHBOARD_LISTEN"); ok {
		raw.Listen = v
	}
	if v, ok := lookup("DASHBOARD_STATIC_DIR"); ok {
		raw.StaticDir = v
	}
	if v, ok := lookup("DASHBOARD_BEO_URL"); ok {
		raw.BEO.URL = v
	}
	if v, ok := lookup("DASHBOARD_BEO_SESSION_COOKIE"); ok {
		raw.BEO.SessionCookie = v
	}
	if v, ok := lookup("DASHBOARD_BEO_TIMEOUT"); ok {
		raw.BEO.Timeout = v
	}
	if v, ok := lookup("DASHBOARD_PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: DASHBOARD_PAGE_SIZE: %v", ErrInvalidConfig, err)
		}
		raw.BEO.PageSize = n
	}
	if v, ok := lookup("DASHBOARD_POLL_INTERVAL"); ok {
		raw.PollInterval = v
	}
	if v, ok := lookup("DASHBOARD_NOTIFICATION_TTL"); ok {
		raw.NotificationTTL = v
	}
	if v, ok := lookup("DASHBOARD_JOURNAL"); ok {
		raw.Journal = v
	}
	if v, ok := lookup("DASHBOARD_LOG_LEVEL"); ok {
		raw.Logging.Level = v
	}
	if v, ok := lookup("DASHBOARD_LOG_FORMAT"); ok {
		raw.Logging.Format = v
	}
	return c.apply(raw)
}
