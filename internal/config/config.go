// Package config loads the deployment configuration a ryeos process starts
// from: space roots, the LLM provider, signing key, thread runtime knobs,
// model rate overrides, the HTTP surface, and logging. Grounded on the
// teacher's config.Config/config.Load, trimmed from its chat-platform
// surface (channels, sessions, workspace files) to this system's surface
// (spaces, directives, threads).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/leolilley/ryeos/internal/budget"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Config is the top-level configuration for a ryeos process.
type Config struct {
	ProjectPath string            `yaml:"project_path"`
	SpaceRoots  []SpaceRootConfig `yaml:"space_roots"`
	Provider    ProviderConfig    `yaml:"provider"`
	Signing     SigningConfig     `yaml:"signing"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Rates       map[string]Rate   `yaml:"rates"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SpaceRootConfig is one project/user/system search root, mirroring
// resolver.SpaceRoot's fields in config-file form.
type SpaceRootConfig struct {
	Space            string   `yaml:"space"`
	Root             string   `yaml:"root"`
	BundleID         string   `yaml:"bundle_id,omitempty"`
	CategoryPrefixes []string `yaml:"category_prefixes,omitempty"`
}

// ProviderConfig configures the LLM backend a runtime dispatches
// completions to.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// SigningConfig locates the ed25519 private key every signed artifact
// (transcripts, bundles, knowledge items) is signed with.
type SigningConfig struct {
	KeyPath string `yaml:"key_path"`
}

// RuntimeConfig tunes the thread loop shared by every invocation.
type RuntimeConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// Rate overrides a model tier's per-million-token price, passed to
// budget.RegisterRate at startup.
type Rate struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// ServerConfig configures internal/httpapi's listener.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path (and any $include files it references), expands
// environment variables, decodes into a Config, applies defaults and env
// overrides, validates, and registers any rate overrides with
// internal/budget.
func Load(path string) (*Config, error) {
	raw, err := loadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	for modelID, r := range cfg.Rates {
		budget.RegisterRate(modelID, budget.Rate{InputPerMillion: r.InputPerMillion, OutputPerMillion: r.OutputPerMillion})
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ProjectPath == "" {
		cfg.ProjectPath = "."
	}
	if cfg.Runtime.MaxIterations == 0 {
		cfg.Runtime.MaxIterations = 50
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "anthropic"
	}
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("RYEOS_PROVIDER_API_KEY")); value != "" {
		cfg.Provider.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("RYEOS_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("RYEOS_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("RYEOS_SIGNING_KEY_PATH")); value != "" {
		cfg.Signing.KeyPath = value
	}
}

// ValidationError collects every config problem found, matching the
// teacher's ConfigValidationError shape so a CLI can print every issue at
// once rather than failing on the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if len(cfg.SpaceRoots) == 0 {
		issues = append(issues, "space_roots must list at least one root")
	}
	seenSpaces := map[string]bool{}
	for i, sr := range cfg.SpaceRoots {
		if strings.TrimSpace(sr.Root) == "" {
			issues = append(issues, fmt.Sprintf("space_roots[%d].root is required", i))
		}
		switch ryemodels.Space(sr.Space) {
		case ryemodels.SpaceProject, ryemodels.SpaceUser, ryemodels.SpaceSystem:
		default:
			issues = append(issues, fmt.Sprintf("space_roots[%d].space must be \"project\", \"user\", or \"system\"", i))
		}
		if sr.Space != string(ryemodels.SpaceSystem) {
			if seenSpaces[sr.Space] {
				issues = append(issues, fmt.Sprintf("space_roots[%d].space %q is duplicated (project/user take exactly one root)", i, sr.Space))
			}
			seenSpaces[sr.Space] = true
		}
	}

	if cfg.Runtime.MaxIterations < 0 {
		issues = append(issues, "runtime.max_iterations must be >= 0")
	}
	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, "server.http_port must be between 0 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		issues = append(issues, "server.metrics_port must be between 0 and 65535")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, "logging.level must be \"debug\", \"info\", \"warn\", or \"error\"")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "json", "text":
	default:
		issues = append(issues, "logging.format must be \"json\" or \"text\"")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// MetricsAddr returns the host:port the prometheus handler should listen
// on.
func (c *Config) MetricsAddr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.MetricsPort)
}

// HTTPAddr returns the host:port internal/httpapi should listen on.
func (c *Config) HTTPAddr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.HTTPPort)
}
