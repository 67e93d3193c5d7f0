package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()

	content := `
server:
  host: "127.0.0.1"
  port: 8080
  allowed_origins:
    - "http://localhost:3000"
  max_message_size: 1024

redis:
  addr: "redis:6379"
  password: "secret"
  db: 1

session:
  cookie_name: "sid"
  ttl: 2

client:
  server_url: "http://chat.example:8080"
  typing_timeout: 1500
  identity_timeout: 3
  show_join_lines: false
  malformed_policy: close
  history_path: "/tmp/roomchat-history"
  history_limit: 20
  sound: true
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.Server.MaxMessageSize)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTLDuration())
	assert.Equal(t, "http://chat.example:8080", cfg.Client.ServerURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Client.TypingTimeoutDuration())
	assert.Equal(t, 3*time.Second, cfg.Client.IdentityTimeoutDuration())
	assert.False(t, cfg.Client.JoinLines())
	assert.Equal(t, MalformedClose, cfg.Client.MalformedPolicy)
	assert.Equal(t, "/tmp/roomchat-history", cfg.Client.HistoryPath)
	assert.Equal(t, 20, cfg.Client.HistoryLimit)
	assert.True(t, cfg.Client.Sound)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	for name, path := range map[string]string{
		"missing file": filepath.Join(t.TempDir(), "absent.yaml"),
		"broken yaml":  writeConfig(t, "server: [port"),
		"wrong type":   writeConfig(t, "server:\n  port: eighty\n"),
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(path)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, defaultHost, cfg.Server.Host)
	assert.Equal(t, defaultPort, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(defaultMaxMessageSize), cfg.Server.MaxMessageSize)
	assert.Equal(t, defaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, defaultCookieName, cfg.Session.CookieName)
	assert.Equal(t, defaultServerURL, cfg.Client.ServerURL)
	assert.Equal(t, time.Second, cfg.Client.TypingTimeoutDuration())
	assert.True(t, cfg.Client.JoinLines())
	assert.Equal(t, MalformedDrop, cfg.Client.MalformedPolicy)
	assert.Empty(t, cfg.Client.HistoryPath)
	assert.Equal(t, defaultMessagesPerSec, cfg.Server.MessagesPerSecond)
	assert.Equal(t, defaultSoundDir, cfg.Client.SoundDir)
	assert.Equal(t, defaultRatePerSecond, cfg.Server.RateLimit.MaxPerSecond)
	assert.Equal(t, time.Minute, cfg.Server.RateLimit.BanDurationTime())
}

func TestLoad_UnknownMalformedPolicyFallsBackToDrop(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "client:\n  malformed_policy: explode\n"))
	require.NoError(t, err)
	assert.Equal(t, MalformedDrop, cfg.Client.MalformedPolicy)
}

// Environment overrides use t.Setenv, so these tests are serial.
func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	t.Setenv("SERVER_HOST", "env-host")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("REDIS_ADDR", "env-redis:6380")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.com,http://b.com")
	t.Setenv("ROOMCHAT_SERVER_URL", "http://env-chat:1780")
	t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.0/8,127.0.0.1")

	cfg, err := Load(writeConfig(t, "server:\n  host: file-host\n  port: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "env-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://env-chat:1780", cfg.Client.ServerURL)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
}

func TestDefault_MatchesEmptyFile(t *testing.T) {
	fromFile, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	assert.Equal(t, fromFile, Default())
}
