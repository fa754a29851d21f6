// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"KB_LOG_LEVEL", "KB_LOG_FORMAT", "KB_MAX_PASSES", "KB_ADDRESS",
		"OTEL_TRACES_EXPORTER", "OTEL_METRICS_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, ontology.DefaultMaxReclassificationPasses, cfg.Reclassification.MaxPasses)
	assert.True(t, cfg.Hierarchy.CheckCyclesOnInsert)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
name: campus
reclassification:
  max_passes: 8
  auto_reposition: true
logging:
  level: debug
  format: json
server:
  address: 0.0.0.0:9000
  document: campus.yaml
  watch: true
  read_timeout: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "campus", cfg.Name)
	assert.Equal(t, 8, cfg.Reclassification.MaxPasses)
	assert.Equal(t, DefaultConfig().Reclassification.FilterParallelism, cfg.Reclassification.FilterParallelism)
	assert.True(t, cfg.Reclassification.AutoReposition)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Server.Watch)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KB_LOG_LEVEL", "WARN")
	t.Setenv("KB_MAX_PASSES", "3")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")

	cfg, err := Load(writeConfig(t, "reclassification:\n  max_passes: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Reclassification.MaxPasses)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "zero passes", body: "reclassification:\n  max_passes: 0\n"},
		{name: "bad level", body: "logging:\n  level: loud\n"},
		{name: "bad exporter", body: "telemetry:\n  trace_exporter: zipkin\n"},
		{name: "bad address", body: "server:\n  address: nowhere\n"},
		{name: "bad env passes", env: map[string]string{"KB_MAX_PASSES": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "colour: blue\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestKBOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "campus"
	cfg.Reclassification.MaxPasses = 5
	cfg.Reclassification.AutoReposition = true

	kb := ontology.New(cfg.KBOptions(slog.Default())...)
	opts := kb.Options()
	assert.Equal(t, "campus", opts.Name)
	assert.Equal(t, 5, opts.MaxReclassificationPasses)
	assert.True(t, opts.AutoReposition)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestKBOptions_DefaultNameKeepsDocumentName(t *testing.T) {
	opts := append([]ontology.Option{ontology.WithName("campus")}, DefaultConfig().KBOptions(slog.Default())...)
	kb := ontology.New(opts...)
	assert.Equal(t, "campus", kb.Name())
}
