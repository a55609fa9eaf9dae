// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the planner service configuration.
//
// Description:
//
//	Values are layered, later layers winning:
//
//	  defaults → YAML config file (optional) → GOAP_* environment → CLI flags
//
//	Environment keys are the upper-cased dotted path with "." replaced by
//	"_", e.g. planner.max_nodes is GOAP_PLANNER_MAX_NODES. CLI flags are
//	applied by cmd/goap after Load returns.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bjpl/meal-assistant-sub008/pkg/logging"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	bstore "github.com/bjpl/meal-assistant-sub008/services/goap/storage/badger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOAP"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Planner   planner.Config  `mapstructure:"planner" yaml:"planner"`
	Storage   bstore.Config   `mapstructure:"storage" yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// BatchLimit caps concurrent searches of one /plan/batch request.
	BatchLimit int `mapstructure:"batch_limit" yaml:"batch_limit"`

	// SearchRate limits search requests (plan, batch, replan) per second
	// across all clients. Zero disables the limit.
	SearchRate  float64 `mapstructure:"search_rate" yaml:"search_rate"`
	SearchBurst int     `mapstructure:"search_burst" yaml:"search_burst"`
}

// CatalogConfig selects the action catalog.
type CatalogConfig struct {
	// Path is a YAML catalog file. Empty uses the embedded default catalog.
	Path string `mapstructure:"path" yaml:"path"`

	// Watch reloads Path when it changes on disk.
	Watch bool `mapstructure:"watch" yaml:"watch"`

	// Debounce coalesces bursts of file events.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// TelemetryConfig configures OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	Environment    string  `mapstructure:"environment" yaml:"environment"`
	TraceExporter  string  `mapstructure:"trace_exporter" yaml:"trace_exporter"`
	MetricExporter string  `mapstructure:"metric_exporter" yaml:"metric_exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// setDefaults registers every key so environment overrides are seen by
// Unmarshal.
func setDefaults(v *viper.Viper) {
	pc := planner.DefaultConfig()
	sc := bstore.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.batch_limit", 4)
	v.SetDefault("server.search_rate", 0.0)
	v.SetDefault("server.search_burst", 8)

	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.watch", false)
	v.SetDefault("catalog.debounce", "250ms")

	v.SetDefault("planner.max_nodes", pc.MaxNodes)
	v.SetDefault("planner.heuristic_weight", pc.HeuristicWeight)
	v.SetDefault("planner.reopen_closed", pc.ReopenClosed)
	v.SetDefault("planner.timeout", pc.Timeout)
	v.SetDefault("planner.cancel_check_interval", pc.CancelCheckInterval)

	v.SetDefault("storage.path", "")
	v.SetDefault("storage.in_memory", true)
	v.SetDefault("storage.sync_writes", sc.SyncWrites)
	v.SetDefault("storage.gc_interval", sc.GCInterval)
	v.SetDefault("storage.gc_discard_ratio", sc.GCDiscardRatio)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", "")
	v.SetDefault("logging.json", false)

	v.SetDefault("telemetry.service_name", "goap")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.trace_exporter", "none")
	v.SetDefault("telemetry.metric_exporter", "prometheus")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Default returns the configuration with no file and no environment.
func Default() Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		// Defaults are static; failing to decode them is a programming error.
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return cfg
}

// Load reads the layered configuration.
//
// Inputs:
//
//	path - Optional YAML config file. Empty skips the file layer.
//
// Outputs:
//
//	Config - The merged, validated configuration.
//	error - Non-nil if the file cannot be read, a value cannot be decoded,
//	        or Validate fails.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := load(v, path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var problems []string

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Server.BatchLimit <= 0 {
		problems = append(problems, "server.batch_limit must be positive")
	}
	if c.Server.SearchRate < 0 {
		problems = append(problems, "server.search_rate must be non-negative")
	}
	if c.Server.SearchRate > 0 && c.Server.SearchBurst <= 0 {
		problems = append(problems, "server.search_burst must be positive when search_rate is set")
	}
	if c.Server.ShutdownTimeout < 0 {
		problems = append(problems, "server.shutdown_timeout must be non-negative")
	}
	if err := c.Planner.Validate(); err != nil {
		problems = append(problems, "planner: "+err.Error())
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		problems = append(problems, "storage.path is required unless storage.in_memory is set")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, "logging.level: "+err.Error())
	}
	if !oneOf(c.Telemetry.TraceExporter, "otlp", "stdout", "none") {
		problems = append(problems, fmt.Sprintf("telemetry.trace_exporter %q is not otlp, stdout or none", c.Telemetry.TraceExporter))
	}
	if !oneOf(c.Telemetry.MetricExporter, "prometheus", "stdout", "none") {
		problems = append(problems, fmt.Sprintf("telemetry.metric_exporter %q is not prometheus, stdout or none", c.Telemetry.MetricExporter))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		problems = append(problems, "telemetry.sample_ratio must be within [0, 1]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// LoggerConfig converts the logging section for pkg/logging.
func (c Config) LoggerConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
