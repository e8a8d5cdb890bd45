// Package config provides YAML configuration parsing for gnos.
//
// This package enables running gnos as a standalone binary with a
// configuration file, as an alternative to the programmatic API.
//
// Example configuration:
//
//	title: Lab Network
//	port: 8080
//	poll_interval: 15s
//	refresh_interval: 30s
//	sample_capacity: 60
//	seed_file: network.yaml
//	log_level: info
//
//	modelers:
//	  - name: snmp
//	    url: ${SNMP_MODELER:-http://localhost:9001/report}
//	    timeout: 5s
//
//	modeler_grids:
//	  - name: lldp
//	    url_template: "http://{{.site}}.example.com:9002/report"
//	    dimensions:
//	      site: [north, south]
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/gnos/internal/actor"
)

// minPollInterval is the minimum allowed polling interval, so a typo cannot
// hammer a modeler.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for gnos.
//
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "gnos" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between modeler polls. Defaults to 15s.
	PollInterval Duration `yaml:"poll_interval"`

	// RefreshInterval is how often open streams re-send their last payload.
	// Defaults to 30s.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// SampleCapacity is the capacity of new sample sets. Defaults to 60.
	SampleCapacity *int `yaml:"sample_capacity"`

	// MaxConcurrency bounds concurrent modeler fetches. Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// SeedFile is a YAML file of facts loaded at startup, resolved relative
	// to the working directory.
	SeedFile string `yaml:"seed_file"`

	// LogLevel is one of trace, debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Modelers defines individual modelers to poll.
	Modelers []ModelerConfig `yaml:"modelers"`

	// ModelerGrids defines modelers that expand via cartesian product.
	ModelerGrids []GridConfig `yaml:"modeler_grids"`
}

// ModelerConfig defines a single polled modeler.
type ModelerConfig struct {
	// Name identifies the modeler in logs and callbacks.
	Name string `yaml:"name"`

	// URL is where the report is fetched from.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Timeout is the fetch timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with each fetch. Values support environment
	// variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Interval overrides poll_interval for this modeler.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`
}

// GridConfig defines a modeler grid that expands via cartesian product.
//
// With dimensions {site: [north, south], role: [core, edge]} the grid
// expands to 4 modelers.
type GridConfig struct {
	// Name is the base name for generated modelers.
	Name string `yaml:"name"`

	// URLTemplate is a Go template over the dimension keys: {{.site}}
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	Timeout  Duration          `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Interval Duration          `yaml:"interval"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return actor.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q (expected trace, debug, info, warn or error)", s)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, URL templates, header values
// and the seed file path. Defaults are applied before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(15 * time.Second)
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = Duration(30 * time.Second)
	}
	if cfg.SampleCapacity == nil {
		capacity := 60
		cfg.SampleCapacity = &capacity
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 10
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.RefreshInterval.Duration() < 0 {
		return fmt.Errorf("refresh_interval cannot be negative, got %s", c.RefreshInterval.Duration())
	}
	if *c.SampleCapacity < 0 {
		return fmt.Errorf("sample_capacity cannot be negative, got %d", *c.SampleCapacity)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.SeedFile != "" {
		expanded, err := expandEnvVars(c.SeedFile)
		if err != nil {
			return fmt.Errorf("seed_file: %w", err)
		}
		c.SeedFile = expanded
	}

	names := make(map[string]struct{})
	for i := range c.Modelers {
		m := &c.Modelers[i]
		ctx := fmt.Sprintf("modelers[%d] (%s)", i, m.Name)

		if m.Name == "" {
			return fmt.Errorf("modelers[%d]: name is required", i)
		}
		if _, dup := names[m.Name]; dup {
			return fmt.Errorf("%s: duplicate modeler name", ctx)
		}
		names[m.Name] = struct{}{}

		if m.URL == "" {
			return fmt.Errorf("%s: url is required", ctx)
		}
		expanded, err := expandEnvVars(m.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", ctx, err)
		}
		m.URL = expanded
		if err := validateURL(m.URL); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if err := expandHeaders(m.Headers); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
		if err := validateTimings(m.Timeout, m.Interval); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
	}

	for i := range c.ModelerGrids {
		g := &c.ModelerGrids[i]
		ctx := fmt.Sprintf("modeler_grids[%d] (%s)", i, g.Name)

		if g.Name == "" {
			return fmt.Errorf("modeler_grids[%d]: name is required", i)
		}

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", ctx)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", ctx, err)
		}
		g.URLTemplate = expanded

		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := expandHeaders(g.Headers); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
		if err := validateTimings(g.Timeout, g.Interval); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
	}

	return nil
}

func validateURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}

func expandHeaders(headers map[string]string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		headers[k] = expanded
	}
	return nil
}

func validateTimings(timeout, interval Duration) error {
	if timeout != 0 {
		if timeout.Duration() < 0 {
			return fmt.Errorf("timeout cannot be negative, got %s", timeout.Duration())
		}
		if timeout.Duration() < time.Second {
			return fmt.Errorf("timeout must be at least 1s if specified, got %s", timeout.Duration())
		}
	}

	if interval != 0 {
		if interval.Duration() < time.Second {
			return fmt.Errorf("interval must be at least 1s, got %s", interval.Duration())
		}
		if interval.Duration() > time.Hour {
			return fmt.Errorf("interval must not exceed 1h, got %s", interval.Duration())
		}
	}
	return nil
}
