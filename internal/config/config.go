package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"

	"github.com/crossgrid/orchestrator/internal/dispatch"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Source   SourceConfig   `koanf:"source"`
	Targets  TargetsConfig  `koanf:"targets"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Worker   WorkerConfig   `koanf:"worker"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	// Enabled false runs on the in-memory store (demo mode, tests).
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// SourceConfig points at the source-system feed the ingestor diffs.
type SourceConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"required"`
}

type TargetConfig struct {
	BaseURL          string        `koanf:"base_url" validate:"required"`
	Timeout          time.Duration `koanf:"timeout" validate:"required"`
	RequiresApproval bool          `koanf:"requires_approval"`
}

type TargetsConfig struct {
	SAP        TargetConfig `koanf:"sap"`
	ServiceNow TargetConfig `koanf:"servicenow"`
}

// Dispatch converts the loaded target sections into the per-call
// configuration struct the orchestrator passes around.
func (t TargetsConfig) Dispatch() dispatch.Targets {
	return dispatch.Targets{
		SAP: dispatch.TargetConfig{
			BaseURL:          t.SAP.BaseURL,
			Timeout:          t.SAP.Timeout,
			RequiresApproval: t.SAP.RequiresApproval,
		},
		ServiceNow: dispatch.TargetConfig{
			BaseURL:          t.ServiceNow.BaseURL,
			Timeout:          t.ServiceNow.Timeout,
			RequiresApproval: t.ServiceNow.RequiresApproval,
		},
	}
}

type SweepConfig struct {
	Concurrency int           `koanf:"concurrency" validate:"required"`
	BatchSize   int           `koanf:"batch_size" validate:"required"`
	InFlightTTL time.Duration `koanf:"inflight_ttl" validate:"required"`
}

type WorkerConfig struct {
	SweepInterval     time.Duration `koanf:"sweep_interval" validate:"required"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval" validate:"required"`
	BatchSize         int           `koanf:"batch_size" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds the process logger from the configured level.
func (l LoggerConfig) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// defaults are overridden by ORCH_-prefixed environment variables.
var defaults = map[string]any{
	"primary.env":                          "development",
	"server.port":                          "8080",
	"server.read_timeout":                  15 * time.Second,
	"server.write_timeout":                 15 * time.Second,
	"server.idle_timeout":                  60 * time.Second,
	"source.base_url":                      "http://localhost:9090",
	"source.fetch_timeout":                 10 * time.Second,
	"targets.sap.base_url":                 "http://localhost:9091",
	"targets.sap.timeout":                  12 * time.Second,
	"targets.sap.requires_approval":        false,
	"targets.servicenow.base_url":          "http://localhost:9092",
	"targets.servicenow.timeout":           12 * time.Second,
	"targets.servicenow.requires_approval": true,
	"sweep.concurrency":                    8,
	"sweep.batch_size":                     100,
	"sweep.inflight_ttl":                   2 * time.Minute,
	"worker.sweep_interval":                30 * time.Second,
	"worker.reconcile_interval":            15 * time.Second,
	"worker.batch_size":                    50,
	"logger.level":                         "info",
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("ORCH_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "ORCH_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	if err := k.Unmarshal("", mainConfig); err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	if err := validate.Struct(mainConfig); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	// SAP exposes no ticket-status endpoint, so an approval ticket raised
	// there could never be reconciled back out of AWAITING_APPROVAL.
	if mainConfig.Targets.SAP.RequiresApproval {
		err := errors.New("targets.sap.requires_approval is not supported: sap exposes no ticket-status endpoint")
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
