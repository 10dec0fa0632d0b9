// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/vigil.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultMigrationsPath            = "file://migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false

	defaultMirrorEnabled          = false
	defaultMirrorAddr             = "localhost:6379"
	defaultMirrorNamespace        = "vigil"
	defaultMirrorFailureThreshold = 5
	defaultMirrorResetTimeout     = 30 * time.Second
	defaultMirrorOpTimeout        = 3 * time.Second

	defaultAutoFallback      = true
	defaultReconnectAttempts = 3
	defaultReconnectDelay    = 5 * time.Second
	defaultSkipDelay         = 500 * time.Millisecond
	defaultLoadRetryDelay    = time.Second

	defaultContentInterval   = 2 * time.Second
	defaultScheduleInterval  = 60 * time.Second
	defaultForcePlayInterval = time.Second
	defaultSeekTolerance     = 5 * time.Second
	defaultClockSkewGrace    = 60 * time.Second
	defaultLiveCeiling       = time.Hour
	defaultWatchStore        = true

	envPrefix = "VIGIL"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Mirror      MirrorConfig
	Playback    PlaybackConfig
	Convergence ConvergenceConfig
	Channel     ChannelConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds the local state store configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// MirrorConfig holds the Redis remote mirror configuration
type MirrorConfig struct {
	Enabled          bool
	Addr             string
	Password         string
	DB               int
	Namespace        string
	FailureThreshold int
	ResetTimeout     time.Duration
	OpTimeout        time.Duration
}

// PlaybackConfig holds playback engine configuration
type PlaybackConfig struct {
	AutoFallback      bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	SkipDelay         time.Duration
	LoadRetryDelay    time.Duration
}

// ConvergenceConfig holds the convergence loop intervals
type ConvergenceConfig struct {
	ContentInterval   time.Duration
	ScheduleInterval  time.Duration
	ForcePlayInterval time.Duration
	SeekTolerance     time.Duration
	ClockSkewGrace    time.Duration
	LiveCeiling       time.Duration
	WatchStore        bool
}

// ChannelConfig holds the static channel configuration
type ChannelConfig struct {
	// SeedPlaylist seeds an empty default playlist
	SeedPlaylist []string
	Live         LiveConfig
}

// LiveConfig holds the optional live source
type LiveConfig struct {
	Enabled bool
	Source  string
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// Load .env file if present (optional, won't error if missing)
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/vigil")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// env vars arrive as one comma separated string
	cfg.Channel.SeedPlaylist = splitList(cfg.Channel.SeedPlaylist)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Mirror defaults
	v.SetDefault("mirror.enabled", defaultMirrorEnabled)
	v.SetDefault("mirror.addr", defaultMirrorAddr)
	v.SetDefault("mirror.password", "")
	v.SetDefault("mirror.db", 0)
	v.SetDefault("mirror.namespace", defaultMirrorNamespace)
	v.SetDefault("mirror.failurethreshold", defaultMirrorFailureThreshold)
	v.SetDefault("mirror.resettimeout", defaultMirrorResetTimeout)
	v.SetDefault("mirror.optimeout", defaultMirrorOpTimeout)

	// Playback defaults
	v.SetDefault("playback.autofallback", defaultAutoFallback)
	v.SetDefault("playback.reconnectattempts", defaultReconnectAttempts)
	v.SetDefault("playback.reconnectdelay", defaultReconnectDelay)
	v.SetDefault("playback.skipdelay", defaultSkipDelay)
	v.SetDefault("playback.loadretrydelay", defaultLoadRetryDelay)

	// Convergence defaults
	v.SetDefault("convergence.contentinterval", defaultContentInterval)
	v.SetDefault("convergence.scheduleinterval", defaultScheduleInterval)
	v.SetDefault("convergence.forceplayinterval", defaultForcePlayInterval)
	v.SetDefault("convergence.seektolerance", defaultSeekTolerance)
	v.SetDefault("convergence.clockskewgrace", defaultClockSkewGrace)
	v.SetDefault("convergence.liveceiling", defaultLiveCeiling)
	v.SetDefault("convergence.watchstore", defaultWatchStore)

	// Channel defaults
	v.SetDefault("channel.seedplaylist", []string{})
	v.SetDefault("channel.live.enabled", false)
	v.SetDefault("channel.live.source", "")
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Mirror.Enabled {
		if c.Mirror.Addr == "" {
			return errors.New("mirror address required when the mirror is enabled")
		}
		if c.Mirror.OpTimeout <= 0 {
			return fmt.Errorf("invalid mirror op timeout: %v (must be > 0)", c.Mirror.OpTimeout)
		}
		if c.Mirror.FailureThreshold < 1 {
			return fmt.Errorf("invalid mirror failure threshold: %d (must be >= 1)", c.Mirror.FailureThreshold)
		}
	}

	if c.Playback.ReconnectAttempts < 0 {
		return fmt.Errorf("invalid reconnect attempts: %d (must be >= 0)", c.Playback.ReconnectAttempts)
	}

	intervals := map[string]time.Duration{
		"playback reconnect delay":        c.Playback.ReconnectDelay,
		"playback skip delay":             c.Playback.SkipDelay,
		"playback load retry delay":       c.Playback.LoadRetryDelay,
		"convergence content interval":    c.Convergence.ContentInterval,
		"convergence schedule interval":   c.Convergence.ScheduleInterval,
		"convergence force-play interval": c.Convergence.ForcePlayInterval,
		"convergence live ceiling":        c.Convergence.LiveCeiling,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %v (must be > 0)", name, d)
		}
	}
	if c.Convergence.SeekTolerance < 0 || c.Convergence.ClockSkewGrace < 0 {
		return errors.New("seek tolerance and clock skew grace cannot be negative")
	}

	if c.Channel.Live.Enabled && c.Channel.Live.Source == "" {
		return errors.New("live source required when live mode is enabled")
	}

	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
