// Package config loads the toolkit configuration: defaults, then a YAML
// file, then environment variables, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ha1tch/uml-toolkit/pkg/diagram"
	"github.com/ha1tch/uml-toolkit/pkg/generate"
)

// Config is the complete toolkit configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Generate GenerateConfig `yaml:"generate"`
	Layout   LayoutConfig   `yaml:"layout"`
	Render   RenderConfig   `yaml:"render"`
	Watch    WatchConfig    `yaml:"watch"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" validate:"oneof=json console"`
	Development bool   `yaml:"development"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	CacheSize      int           `yaml:"cache_size" validate:"gte=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	StreamInterval time.Duration `yaml:"stream_interval" validate:"gt=0"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" validate:"gt=0"`
}

type GenerateConfig struct {
	Endpoint string        `yaml:"endpoint" validate:"required,url"`
	Model    string        `yaml:"model" validate:"required"`
	APIKey   string        `yaml:"api_key"`
	Language string        `yaml:"language" validate:"required"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" validate:"gte=1"`
}

// LayoutConfig tunes the layout strategies. LeftActors switches the
// column layout from alternating sides to a fixed set of left-column
// actor names. ClassStrategy picks force or layered for class diagrams.
type LayoutConfig struct {
	ClassStrategy string   `yaml:"class_strategy" validate:"oneof=force layered"`
	MaxTicks      int      `yaml:"max_ticks" validate:"gte=1"`
	Seed          uint64   `yaml:"seed"`
	RowSpacing    float64  `yaml:"row_spacing" validate:"gt=0"`
	GroupSpacing  float64  `yaml:"group_spacing" validate:"gte=0"`
	LeftActors    []string `yaml:"left_actors"`
}

type RenderConfig struct {
	Palette     string            `yaml:"palette" validate:"oneof=default screen print"`
	Overrides   map[string]string `yaml:"overrides"`
	Supersample int               `yaml:"supersample" validate:"gte=1,lte=4"`
	Concurrency int               `yaml:"concurrency" validate:"gte=1,lte=64"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gt=0"`
	Ignore   []string      `yaml:"ignore"`
}

// Default returns the built-in configuration.
func Default() *Config {
	g := generate.DefaultOptions()
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:           ":8080",
			CORSOrigins:    []string{"*"},
			CacheSize:      256,
			RequestTimeout: 2 * time.Minute,
			StreamInterval: 16 * time.Millisecond,
			MaxBodyBytes:   4 << 20,
		},
		Generate: GenerateConfig{
			Endpoint: g.Endpoint,
			Model:    g.Model,
			Language: "pt-BR",
			Timeout:  g.Timeout,
			Breaker: BreakerConfig{
				MaxRequests:      g.Breaker.MaxRequests,
				Interval:         g.Breaker.Interval,
				Timeout:          g.Breaker.Timeout,
				FailureThreshold: g.Breaker.FailureThreshold,
				MinRequests:      g.Breaker.MinRequests,
			},
		},
		Layout: LayoutConfig{
			ClassStrategy: "force",
			MaxTicks:      diagram.DefaultMaxTicks,
			Seed:          1,
			RowSpacing:    110,
			GroupSpacing:  60,
		},
		Render: RenderConfig{
			Palette:     "default",
			Supersample: diagram.DefaultSupersample,
			Concurrency: 4,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
			Ignore:   []string{"**/.git/**", "**/*.svg", "**/*.png", "**/*.md"},
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays UML_* variables. GEMINI_API_KEY is honored when
// UML_GENERATE_API_KEY is unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("UML_LOG_LEVEL", &c.Log.Level)
	str("UML_LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("UML_LOG_DEVELOPMENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("UML_LOG_DEVELOPMENT: %w", err))
		}
		c.Log.Development = b
	}

	str("UML_SERVER_ADDR", &c.Server.Addr)
	list("UML_SERVER_CORS_ORIGINS", &c.Server.CORSOrigins)
	integer("UML_SERVER_CACHE_SIZE", &c.Server.CacheSize)
	duration("UML_SERVER_REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	str("UML_GENERATE_ENDPOINT", &c.Generate.Endpoint)
	str("UML_GENERATE_MODEL", &c.Generate.Model)
	str("UML_GENERATE_LANGUAGE", &c.Generate.Language)
	duration("UML_GENERATE_TIMEOUT", &c.Generate.Timeout)
	str("GEMINI_API_KEY", &c.Generate.APIKey)
	str("UML_GENERATE_API_KEY", &c.Generate.APIKey)

	str("UML_LAYOUT_CLASS_STRATEGY", &c.Layout.ClassStrategy)
	integer("UML_LAYOUT_MAX_TICKS", &c.Layout.MaxTicks)
	list("UML_LAYOUT_LEFT_ACTORS", &c.Layout.LeftActors)

	str("UML_RENDER_PALETTE", &c.Render.Palette)
	integer("UML_RENDER_SUPERSAMPLE", &c.Render.Supersample)
	integer("UML_RENDER_CONCURRENCY", &c.Render.Concurrency)

	duration("UML_WATCH_DEBOUNCE", &c.Watch.Debounce)
	list("UML_WATCH_IGNORE", &c.Watch.Ignore)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var configValidator = validator.New()

// Validate checks field ranges and that the palette overrides name real
// slots with valid colors.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}
	if _, err := c.Palette(); err != nil {
		return err
	}
	return nil
}

// Palette resolves the configured palette with overrides applied.
func (c *Config) Palette() (diagram.Palette, error) {
	p, err := diagram.PaletteByName(c.Render.Palette)
	if err != nil {
		return diagram.Palette{}, err
	}
	return p.Override(c.Render.Overrides)
}

// LayoutOptions returns layout options for a diagram kind.
func (c *Config) LayoutOptions(kind diagram.Kind) diagram.LayoutOptions {
	opts := diagram.DefaultLayoutOptions(kind)
	opts.MaxTicks = c.Layout.MaxTicks
	opts.Force.Seed = c.Layout.Seed
	opts.Columns.RowSpacing = c.Layout.RowSpacing
	opts.Columns.GroupSpacing = c.Layout.GroupSpacing
	if len(c.Layout.LeftActors) > 0 {
		opts.Columns.Side = diagram.NameSides(c.Layout.LeftActors...)
	}
	if kind == diagram.KindClass {
		if s, err := diagram.ParseStrategy(c.Layout.ClassStrategy); err == nil {
			opts.Strategy = s
		}
	}
	return opts
}

// GenerateOptions returns the generation client options.
func (c *Config) GenerateOptions() generate.Options {
	g := c.Generate
	return generate.Options{
		Endpoint: g.Endpoint,
		Model:    g.Model,
		APIKey:   g.APIKey,
		Timeout:  g.Timeout,
		Breaker: generate.BreakerOptions{
			MaxRequests:      g.Breaker.MaxRequests,
			Interval:         g.Breaker.Interval,
			Timeout:          g.Breaker.Timeout,
			FailureThreshold: g.Breaker.FailureThreshold,
			MinRequests:      g.Breaker.MinRequests,
		},
	}
}
