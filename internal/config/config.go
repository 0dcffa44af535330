// Package config loads the relay's runtime configuration from the
// environment and constructs the process logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVarListenAddr      = "AIRCAST_SIGNALING_LISTEN_ADDR"
	envVarMode            = "AIRCAST_SIGNALING_MODE"
	envVarLogFormat       = "AIRCAST_SIGNALING_LOG_FORMAT"
	envVarLogLevel        = "AIRCAST_SIGNALING_LOG_LEVEL"
	envVarShutdownTimeout = "AIRCAST_SIGNALING_SHUTDOWN_TIMEOUT"

	// Room lifecycle knobs.
	envVarRoomPersistenceTimeout = "ROOM_PERSISTENCE_TIMEOUT"
	envVarRoomCleanupInterval    = "ROOM_CLEANUP_INTERVAL"
	envVarRoomMaxAge             = "ROOM_MAX_AGE"

	// WebSocket inbound hardening + keepalive.
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarSignalingWSPingInterval       = "SIGNALING_WS_PING_INTERVAL"
	envVarSignalingWSIdleTimeout        = "SIGNALING_WS_IDLE_TIMEOUT"
)

const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultShutdown        = 15 * time.Second
	DefaultMode       Mode = ModeDev

	// DefaultRoomPersistenceTimeout is how long an abandoned room survives
	// before eviction, which is also the window a broadcaster has to reconnect
	// under the same code.
	DefaultRoomPersistenceTimeout = 5 * time.Minute
	DefaultRoomCleanupInterval    = 1 * time.Minute
	// DefaultRoomMaxAge is a safety cutoff for rooms that somehow never become
	// abandoned (e.g. a listener that is never reaped by the transport layer).
	DefaultRoomMaxAge = 12 * time.Hour

	DefaultMaxSignalingMessageBytes      = int64(64 * 1024)
	DefaultMaxSignalingMessagesPerSecond = 50
	DefaultSignalingWSPingInterval       = 20 * time.Second
	DefaultSignalingWSIdleTimeout        = 60 * time.Second
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	RoomPersistenceTimeout time.Duration
	RoomCleanupInterval    time.Duration
	RoomMaxAge             time.Duration

	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	SignalingWSPingInterval       time.Duration
	SignalingWSIdleTimeout        time.Duration
}

func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	modeStr := envOrDefault(lookup, envVarMode, string(DefaultMode))
	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	logFormat, err := parseLogFormat(envOrDefault(lookup, envVarLogFormat, defaultLogFormatForMode(mode)))
	if err != nil {
		return Config{}, err
	}
	logLevel, err := parseLogLevel(envOrDefault(lookup, envVarLogLevel, defaultLogLevelForMode(mode)))
	if err != nil {
		return Config{}, err
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}

	persistenceTimeout, err := envDurationOrDefault(lookup, envVarRoomPersistenceTimeout, DefaultRoomPersistenceTimeout)
	if err != nil {
		return Config{}, err
	}
	cleanupInterval, err := envDurationOrDefault(lookup, envVarRoomCleanupInterval, DefaultRoomCleanupInterval)
	if err != nil {
		return Config{}, err
	}
	maxAge, err := envDurationOrDefault(lookup, envVarRoomMaxAge, DefaultRoomMaxAge)
	if err != nil {
		return Config{}, err
	}

	maxMessageBytes, err := envIntOrDefault(lookup, envVarMaxSignalingMessageBytes, int(DefaultMaxSignalingMessageBytes))
	if err != nil {
		return Config{}, err
	}
	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	pingInterval, err := envDurationOrDefault(lookup, envVarSignalingWSPingInterval, DefaultSignalingWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	idleTimeout, err := envDurationOrDefault(lookup, envVarSignalingWSIdleTimeout, DefaultSignalingWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:      listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		ShutdownTimeout: shutdownTimeout,

		RoomPersistenceTimeout: persistenceTimeout,
		RoomCleanupInterval:    cleanupInterval,
		RoomMaxAge:             maxAge,

		MaxSignalingMessageBytes:      int64(maxMessageBytes),
		MaxSignalingMessagesPerSecond: maxMessagesPerSecond,
		SignalingWSPingInterval:       pingInterval,
		SignalingWSIdleTimeout:        idleTimeout,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RoomPersistenceTimeout <= 0 {
		return fmt.Errorf("%s must be positive", envVarRoomPersistenceTimeout)
	}
	if c.RoomCleanupInterval <= 0 {
		return fmt.Errorf("%s must be positive", envVarRoomCleanupInterval)
	}
	if c.RoomMaxAge <= 0 {
		return fmt.Errorf("%s must be positive", envVarRoomMaxAge)
	}
	if c.RoomMaxAge < c.RoomPersistenceTimeout {
		return fmt.Errorf("%s must not be shorter than %s", envVarRoomMaxAge, envVarRoomPersistenceTimeout)
	}
	if c.MaxSignalingMessageBytes <= 0 {
		return fmt.Errorf("%s must be positive", envVarMaxSignalingMessageBytes)
	}
	if c.MaxSignalingMessagesPerSecond <= 0 {
		return fmt.Errorf("%s must be positive", envVarMaxSignalingMessagesPerSecond)
	}
	if c.SignalingWSPingInterval <= 0 || c.SignalingWSIdleTimeout <= 0 {
		return fmt.Errorf("%s and %s must be positive", envVarSignalingWSPingInterval, envVarSignalingWSIdleTimeout)
	}
	if c.SignalingWSPingInterval >= c.SignalingWSIdleTimeout {
		return fmt.Errorf("%s must be shorter than %s", envVarSignalingWSPingInterval, envVarSignalingWSIdleTimeout)
	}
	return nil
}

// NewLogger constructs the process logger from the loaded configuration.
func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid %s %q (want dev or prod)", envVarMode, raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid %s %q (want text or json)", envVarLogFormat, raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid %s %q", envVarLogLevel, raw)
	}
}
