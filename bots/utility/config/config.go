// Package config loads the utility bot configuration: the shared core
// sections plus database, shortener, QR, state, redis and ops HTTP settings.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/utilitybot/core/config"
	coredatabase "github.com/m3rciful/utilitybot/core/database"
)

// DefaultShortenerEndpoint is the TinyURL plain-text creation API.
const DefaultShortenerEndpoint = "https://tinyurl.com/api-create.php"

// ShortenerConfig configures the URL shortening backend.
type ShortenerConfig struct {
	Endpoint string        `yaml:"endpoint" envconfig:"SHORTENER_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"SHORTENER_TIMEOUT"`
	// CacheTTL bounds how long short links stay in redis; 0 disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"SHORTENER_CACHE_TTL"`
}

// QRConfig configures rendered QR codes.
type QRConfig struct {
	Size         int `yaml:"size" envconfig:"QR_SIZE"`
	CaptionLimit int `yaml:"caption_limit" envconfig:"QR_CAPTION_LIMIT"`
}

// StateConfig configures the pending task store.
type StateConfig struct {
	// TTL expires an unanswered prompt; 0 keeps it until the next message.
	TTL           time.Duration `yaml:"ttl" envconfig:"STATE_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"STATE_SWEEP_INTERVAL"`
}

// RedisConfig enables the short link cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// HTTPConfig enables /healthz and /readyz when Listen is set.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
}

// SenderConfig tunes the asynchronous outbound message queue.
type SenderConfig struct {
	Workers    int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize  int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
}

// Config is the full utility bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Shortener ShortenerConfig     `yaml:"shortener"`
	QR        QRConfig            `yaml:"qr"`
	State     StateConfig         `yaml:"state"`
	Redis     RedisConfig         `yaml:"redis"`
	HTTP      HTTPConfig          `yaml:"http"`
	Sender    SenderConfig        `yaml:"sender"`
}

// CoreConfig exposes the shared section to the core runner.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Defaults returns the configuration used for keys absent from file and environment.
func Defaults() Config {
	return Config{
		Database: coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: "utility_bot.db"},
		Shortener: ShortenerConfig{
			Endpoint: DefaultShortenerEndpoint,
			Timeout:  10 * time.Second,
			CacheTTL: 24 * time.Hour,
		},
		QR:     QRConfig{Size: 400, CaptionLimit: 50},
		State:  StateConfig{TTL: 10 * time.Minute, SweepInterval: time.Minute},
		Sender: SenderConfig{Workers: 4, QueueSize: 256, MaxRetries: 2},
	}
}

// Load reads defaults, then the optional YAML file at path, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the bot specific sections.
func (c *Config) Normalize() error {
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	c.Shortener.Endpoint = strings.TrimSpace(c.Shortener.Endpoint)
	if c.Shortener.Endpoint == "" {
		c.Shortener.Endpoint = DefaultShortenerEndpoint
	}
	if u, err := url.Parse(c.Shortener.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("shortener.endpoint must be an absolute URL, got %q", c.Shortener.Endpoint)
	}
	if c.Shortener.Timeout <= 0 {
		return fmt.Errorf("shortener.timeout must be > 0")
	}
	if c.Shortener.CacheTTL < 0 {
		return fmt.Errorf("shortener.cache_ttl must be >= 0")
	}

	if c.QR.Size < 64 {
		return fmt.Errorf("qr.size must be >= 64, got %d", c.QR.Size)
	}
	if c.QR.CaptionLimit <= 0 {
		return fmt.Errorf("qr.caption_limit must be > 0")
	}

	if c.State.TTL < 0 || c.State.SweepInterval < 0 {
		return fmt.Errorf("state.ttl and state.sweep_interval must be >= 0")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.HTTP.Listen = strings.TrimSpace(c.HTTP.Listen)
	return nil
}

// LoadDatabase is Load without the Telegram checks, for offline tasks such as migrations.
func LoadDatabase(path string) (*Config, error) {
	cfg := Defaults()
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
