package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultEngine       = "auto"
	defaultDBPath       = "fetchmux.db"
	defaultUserAgent    = "fetchmux/1.0"
	defaultMaxRedirects = 10
	defaultListenAddr   = ":5001"

	envEngine       = "FETCHMUX_ENGINE"
	envDBPath       = "FETCHMUX_DB_PATH"
	envLogLevel     = "FETCHMUX_LOG_LEVEL"
	envUserAgent    = "FETCHMUX_USER_AGENT"
	envMaxRedirects = "FETCHMUX_MAX_REDIRECTS"
	envListenAddr   = "FETCHMUX_LISTEN_ADDR"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Engine       string
	DBPath       string
	LogLevel     slog.Level
	UserAgent    string
	MaxRedirects int
	ListenAddr   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		Engine:       defaultEngine,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		UserAgent:    defaultUserAgent,
		MaxRedirects: defaultMaxRedirects,
		ListenAddr:   defaultListenAddr,
	}

	if v := os.Getenv(envEngine); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envUserAgent); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv(envMaxRedirects); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRedirects = n
		}
	}
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
