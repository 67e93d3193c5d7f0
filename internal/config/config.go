// Package config loads the YAML configuration shared by roomchat and roomchatd.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxMessageSize = 4096
	defaultRedisAddr      = "localhost:6379"
	defaultCookieName     = "roomchat_session"
	defaultSessionTTL     = 24
	defaultServerURL      = "http://localhost:1780"
	defaultTypingTimeout  = 1000
	defaultIdentityWait   = 10
	defaultHistoryLimit   = 100
	defaultMessagesPerSec = 10
	defaultSoundDir       = "assets/sounds"
	defaultRatePerSecond  = 5
	defaultRatePerMinute  = 60
	defaultBanSeconds     = 60

	MalformedDrop  = "drop"
	MalformedClose = "close"
)

// Config holds both server and client settings; each program reads its part.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Session SessionConfig `yaml:"session"`
	Client  ClientConfig  `yaml:"client"`
}

// ServerConfig HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxMessageSize int64    `yaml:"max_message_size"` // bytes per inbound frame
	// MessagesPerSecond throttles chat frames per connection.
	MessagesPerSecond int             `yaml:"messages_per_second"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	// TrustedProxies are addresses or CIDR ranges whose forwarding headers
	// name the client. Empty means the socket address is always used.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// RateLimitConfig per-IP limits for login, signup and WebSocket upgrades.
type RateLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
	MaxPerMinute int `yaml:"max_per_minute"`
	BanDuration  int `yaml:"ban_duration"` // seconds
}

// BanDurationTime returns the ban length.
func (c *RateLimitConfig) BanDurationTime() time.Duration {
	return time.Duration(c.BanDuration) * time.Second
}

// RedisConfig Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SessionConfig login session cookie.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	TTL        int    `yaml:"ttl"` // hours
}

// TTLDuration returns the session lifetime.
func (c *SessionConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Hour
}

// ClientConfig terminal client settings.
type ClientConfig struct {
	ServerURL       string `yaml:"server_url"`
	TypingTimeout   int    `yaml:"typing_timeout"`   // milliseconds
	IdentityTimeout int    `yaml:"identity_timeout"` // seconds
	ShowJoinLines   *bool  `yaml:"show_join_lines"`
	MalformedPolicy string `yaml:"malformed_policy"` // drop | close
	HistoryPath     string `yaml:"history_path"`     // empty disables the local transcript
	HistoryLimit    int    `yaml:"history_limit"`
	Sound           bool   `yaml:"sound"`
	SoundDir        string `yaml:"sound_dir"`
}

// TypingTimeoutDuration returns the typing indicator inactivity window.
func (c *ClientConfig) TypingTimeoutDuration() time.Duration {
	return time.Duration(c.TypingTimeout) * time.Millisecond
}

// IdentityTimeoutDuration bounds the identity fetch.
func (c *ClientConfig) IdentityTimeoutDuration() time.Duration {
	return time.Duration(c.IdentityTimeout) * time.Second
}

// JoinLines reports whether join events render a message line.
func (c *ClientConfig) JoinLines() bool {
	return c.ShowJoinLines == nil || *c.ShowJoinLines
}

// Load reads the config file, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = defaultMaxMessageSize
	}
	if c.Server.MessagesPerSecond == 0 {
		c.Server.MessagesPerSecond = defaultMessagesPerSec
	}
	if c.Server.RateLimit.MaxPerSecond == 0 {
		c.Server.RateLimit.MaxPerSecond = defaultRatePerSecond
	}
	if c.Server.RateLimit.MaxPerMinute == 0 {
		c.Server.RateLimit.MaxPerMinute = defaultRatePerMinute
	}
	if c.Server.RateLimit.BanDuration == 0 {
		c.Server.RateLimit.BanDuration = defaultBanSeconds
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = defaultCookieName
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = defaultSessionTTL
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = defaultServerURL
	}
	if c.Client.TypingTimeout == 0 {
		c.Client.TypingTimeout = defaultTypingTimeout
	}
	if c.Client.IdentityTimeout == 0 {
		c.Client.IdentityTimeout = defaultIdentityWait
	}
	if c.Client.MalformedPolicy != MalformedClose {
		c.Client.MalformedPolicy = MalformedDrop
	}
	if c.Client.HistoryLimit == 0 {
		c.Client.HistoryLimit = defaultHistoryLimit
	}
	if c.Client.SoundDir == "" {
		c.Client.SoundDir = defaultSoundDir
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SERVER_TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ROOMCHAT_SERVER_URL"); v != "" {
		c.Client.ServerURL = v
	}
}
