package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/uml-toolkit/pkg/diagram"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
server:
  addr: 127.0.0.1:9000
  request_timeout: 45s
generate:
  model: gemini-1.5-pro
  language: en
layout:
  class_strategy: layered
  left_actors: [Cliente, Administrador]
render:
  palette: print
  overrides:
    classFill: "#eeeeee"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "gemini-1.5-pro", cfg.Generate.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Generate.Endpoint, cfg.Generate.Endpoint)
	assert.Equal(t, 256, cfg.Server.CacheSize)

	p, err := cfg.Palette()
	require.NoError(t, err)
	assert.Equal(t, "#eeeeee", p.ClassFill)
	assert.Equal(t, diagram.PrintPalette().ClassStroke, p.ClassStroke)

	opts := cfg.LayoutOptions(diagram.KindUseCase)
	assert.Equal(t, diagram.StrategyColumns, opts.Strategy)
	assert.Equal(t, diagram.SideLeft, opts.Columns.Side(1, diagram.Node{Data: diagram.NodeData{Name: "Administrador"}}))
	assert.Equal(t, diagram.SideRight, opts.Columns.Side(0, diagram.Node{Data: diagram.NodeData{Name: "Fornecedor"}}))
	assert.Equal(t, diagram.StrategyLayered, cfg.LayoutOptions(diagram.KindClass).Strategy)
	assert.Equal(t, diagram.StrategyForce, Default().LayoutOptions(diagram.KindClass).Strategy)
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("UML_LOG_LEVEL", "warn")
	t.Setenv("UML_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("UML_RENDER_CONCURRENCY", "8")
	t.Setenv("UML_WATCH_DEBOUNCE", "1s")
	t.Setenv("UML_LAYOUT_CLASS_STRATEGY", "layered")

	cfg, err := Load(writeConfig(t, "log:\n  level: error\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level, "environment wins over file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "from-gemini", cfg.Generate.APIKey)
	assert.Equal(t, 8, cfg.Render.Concurrency)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "layered", cfg.Layout.ClassStrategy)

	t.Setenv("UML_GENERATE_API_KEY", "explicit")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Generate.APIKey)
}

func TestApplyEnvErrors(t *testing.T) {
	env := map[string]string{
		"UML_SERVER_CACHE_SIZE": "lots",
		"UML_GENERATE_TIMEOUT":  "soon",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UML_SERVER_CACHE_SIZE")
	assert.Contains(t, err.Error(), "UML_GENERATE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		target error
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, nil},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, nil},
		{"bad endpoint", func(c *Config) { c.Generate.Endpoint = "not a url" }, nil},
		{"threshold above one", func(c *Config) { c.Generate.Breaker.FailureThreshold = 1.5 }, nil},
		{"supersample too high", func(c *Config) { c.Render.Supersample = 8 }, nil},
		{"unknown palette", func(c *Config) { c.Render.Palette = "neon" }, nil},
		{"columns for classes", func(c *Config) { c.Layout.ClassStrategy = "columns" }, nil},
		{"unknown slot", func(c *Config) { c.Render.Overrides = map[string]string{"glow": "#fff"} }, diagram.ErrUnknownSlot},
		{"bad color", func(c *Config) { c.Render.Overrides = map[string]string{"classFill": "purple"} }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target))
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "log: [oops"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "render:\n  concurrency: 0\n"))
	assert.ErrorContains(t, err, "validation failed")
}

func TestGenerateOptions(t *testing.T) {
	cfg := Default()
	cfg.Generate.APIKey = "k"
	opts := cfg.GenerateOptions()
	assert.Equal(t, "k", opts.APIKey)
	assert.Equal(t, cfg.Generate.Model, opts.Model)
	assert.Equal(t, cfg.Generate.Breaker.MinRequests, opts.Breaker.MinRequests)
}
