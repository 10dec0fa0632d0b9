package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultServerPort, cfg.Server.Port)
	assert.Equal(t, defaultServerHost, cfg.Server.Host)
	assert.Equal(t, defaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, defaultDatabaseEnableWAL, cfg.Database.EnableWAL)
	assert.Equal(t, defaultMigrationsPath, cfg.Database.MigrationsPath)
	assert.Equal(t, defaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, defaultLogPretty, cfg.Logging.Pretty)

	assert.False(t, cfg.Mirror.Enabled)
	assert.Equal(t, defaultMirrorNamespace, cfg.Mirror.Namespace)
	assert.Equal(t, defaultMirrorOpTimeout, cfg.Mirror.OpTimeout)

	assert.True(t, cfg.Playback.AutoFallback)
	assert.Equal(t, 3, cfg.Playback.ReconnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.Playback.ReconnectDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Playback.SkipDelay)
	assert.Equal(t, time.Second, cfg.Playback.LoadRetryDelay)

	assert.Equal(t, 2*time.Second, cfg.Convergence.ContentInterval)
	assert.Equal(t, 60*time.Second, cfg.Convergence.ScheduleInterval)
	assert.Equal(t, time.Second, cfg.Convergence.ForcePlayInterval)
	assert.Equal(t, time.Hour, cfg.Convergence.LiveCeiling)
	assert.True(t, cfg.Convergence.WatchStore)

	assert.Empty(t, cfg.Channel.SeedPlaylist)
	assert.False(t, cfg.Channel.Live.Enabled)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("VIGIL_SERVER_PORT", "9090")
	t.Setenv("VIGIL_MIRROR_ENABLED", "true")
	t.Setenv("VIGIL_MIRROR_ADDR", "redis:6379")
	t.Setenv("VIGIL_PLAYBACK_RECONNECTDELAY", "2s")
	t.Setenv("VIGIL_CHANNEL_SEEDPLAYLIST", "aaaaaaaaaaa, bbbbbbbbbbb")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Mirror.Enabled)
	assert.Equal(t, "redis:6379", cfg.Mirror.Addr)
	assert.Equal(t, 2*time.Second, cfg.Playback.ReconnectDelay)
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}, cfg.Channel.SeedPlaylist)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080, Host: "localhost", ReadTimeout: time.Second, WriteTimeout: time.Second},
			Database: DatabaseConfig{Path: "./test.db", ConnectionTimeout: time.Second},
			Logging:  LoggingConfig{Level: "info"},
			Mirror:   MirrorConfig{Addr: "localhost:6379", FailureThreshold: 5, OpTimeout: time.Second},
			Playback: PlaybackConfig{
				ReconnectAttempts: 3,
				ReconnectDelay:    time.Second,
				SkipDelay:         time.Second,
				LoadRetryDelay:    time.Second,
			},
			Convergence: ConvergenceConfig{
				ContentInterval:   time.Second,
				ScheduleInterval:  time.Second,
				ForcePlayInterval: time.Second,
				LiveCeiling:       time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "invalid port - too low", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "invalid port - too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "invalid read timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "mirror enabled without address", mutate: func(c *Config) {
			c.Mirror.Enabled = true
			c.Mirror.Addr = ""
		}, wantErr: true},
		{name: "mirror disabled ignores address", mutate: func(c *Config) { c.Mirror.Addr = "" }},
		{name: "negative reconnect attempts", mutate: func(c *Config) { c.Playback.ReconnectAttempts = -1 }, wantErr: true},
		{name: "zero reconnect attempts", mutate: func(c *Config) { c.Playback.ReconnectAttempts = 0 }},
		{name: "zero content interval", mutate: func(c *Config) { c.Convergence.ContentInterval = 0 }, wantErr: true},
		{name: "negative skew grace", mutate: func(c *Config) { c.Convergence.ClockSkewGrace = -time.Second }, wantErr: true},
		{name: "live without source", mutate: func(c *Config) { c.Channel.Live.Enabled = true }, wantErr: true},
		{name: "live with source", mutate: func(c *Config) {
			c.Channel.Live = LiveConfig{Enabled: true, Source: "live-ref"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
