package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	NATSURL     string
	Subject     string
	HTTPAddr    string
	ProjectDir  string
	ActionsFile string
	LogDir      string
	LogLevel    slog.Level
	GracePeriod time.Duration
	KillTimeout time.Duration
}

func LoadConfig() (config, error) {
	cfg := config{
		NATSURL:     getenv("NATS_URL", "nats://127.0.0.1:4222"),
		Subject:     strings.TrimSuffix(getenv("XCEDE_SUBJECT", "xcede.jobs"), "."),
		HTTPAddr:    getenv("HTTP_ADDR", ""),
		ProjectDir:  getenv("PROJECT_DIR", "."),
		ActionsFile: getenv("ACTIONS_FILE", ""),
		LogDir:      getenv("LOG_DIR", ""),
	}
	if cfg.Subject == "" {
		return config{}, fmt.Errorf("XCEDE_SUBJECT must not be empty")
	}

	level, err := parseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return config{}, err
	}
	cfg.LogLevel = level

	grace, err := parsePositiveInt(getenv("GRACE_PERIOD_MS", "5000"), "GRACE_PERIOD_MS")
	if err != nil {
		return config{}, err
	}
	cfg.GracePeriod = time.Duration(grace) * time.Millisecond

	kill, err := parsePositiveInt(getenv("KILL_TIMEOUT_MS", "3000"), "KILL_TIMEOUT_MS")
	if err != nil {
		return config{}, err
	}
	cfg.KillTimeout = time.Duration(kill) * time.Millisecond

	return cfg, nil
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
