// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the engine and service configuration.
//
// Configuration comes from an optional YAML file layered over
// DefaultConfig, then from environment variables, and is validated
// before use.
//
// # Environment Variables
//
//   - KB_LOG_LEVEL: debug, info, warn or error
//   - KB_LOG_FORMAT: json or text
//   - KB_MAX_PASSES: reclassification pass cap
//   - KB_ADDRESS: HTTP listen address
//   - OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER,
//     OTEL_EXPORTER_OTLP_ENDPOINT: see package telemetry
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
	"github.com/AleutianAI/conceptbase/services/kb/telemetry"
)

// ErrInvalidConfig is returned when configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration document.
type Config struct {
	// Name is the knowledge base name used in logs and metrics.
	Name string `yaml:"name" validate:"required"`

	Hierarchy        HierarchyConfig        `yaml:"hierarchy"`
	Reclassification ReclassificationConfig `yaml:"reclassification"`
	Logging          LoggingConfig          `yaml:"logging"`
	Telemetry        telemetry.Config       `yaml:"telemetry"`
	Server           ServerConfig           `yaml:"server"`
}

// HierarchyConfig limits the concept hierarchy.
type HierarchyConfig struct {
	MaxNodes            int  `yaml:"max_nodes" validate:"gte=1"`
	CheckCyclesOnInsert bool `yaml:"check_cycles_on_insert"`
}

// ReclassificationConfig tunes derived-concept maintenance.
type ReclassificationConfig struct {
	MaxPasses         int  `yaml:"max_passes" validate:"gte=1,lte=100000"`
	FilterParallelism int  `yaml:"filter_parallelism" validate:"gte=1,lte=1024"`
	AutoReposition    bool `yaml:"auto_reposition"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// ServerConfig configures "kb serve".
type ServerConfig struct {
	Address string `yaml:"address" validate:"required,hostname_port"`

	// Document is loaded at startup when set.
	Document string `yaml:"document"`

	// Watch reloads Document when it changes on disk.
	Watch bool `yaml:"watch"`

	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	kb := ontology.DefaultOptions()
	return Config{
		Name: kb.Name,
		Hierarchy: HierarchyConfig{
			MaxNodes:            hierarchy.DefaultMaxNodes,
			CheckCyclesOnInsert: kb.CheckCyclesOnInsert,
		},
		Reclassification: ReclassificationConfig{
			MaxPasses:         kb.MaxReclassificationPasses,
			FilterParallelism: kb.FilterParallelism,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Address:         "127.0.0.1:12230",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

var configValidate = validator.New()

// Load builds the configuration.
//
// Description:
//
//	Starts from DefaultConfig, overlays the YAML file at path (skipped
//	when path is empty), applies environment overrides, and validates.
//	Unknown YAML keys are rejected.
//
// Outputs:
//
//	Config - The effective configuration.
//	error - A read or parse error, or ErrInvalidConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("KB_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("KB_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("KB_MAX_PASSES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: KB_MAX_PASSES=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Reclassification.MaxPasses = n
	}
	if v := os.Getenv("KB_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		c.Telemetry.TraceExporter = v
	}
	if v := os.Getenv("OTEL_METRICS_EXPORTER"); v != "" {
		c.Telemetry.MetricExporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// KBOptions translates the configuration into knowledge base options.
// The name is only set when it differs from the default, so a loaded
// document keeps its own name unless the configuration overrides it.
func (c Config) KBOptions(logger *slog.Logger) []ontology.Option {
	opts := []ontology.Option{
		ontology.WithMaxConcepts(c.Hierarchy.MaxNodes),
		ontology.WithCycleCheck(c.Hierarchy.CheckCyclesOnInsert),
		ontology.WithMaxReclassificationPasses(c.Reclassification.MaxPasses),
		ontology.WithFilterParallelism(c.Reclassification.FilterParallelism),
		ontology.WithAutoReposition(c.Reclassification.AutoReposition),
		ontology.WithLogger(logger),
	}
	if c.Name != ontology.DefaultOptions().Name {
		opts = append(opts, ontology.WithName(c.Name))
	}
	return opts
}
