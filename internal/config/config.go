package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all zerotrace configuration.
type Config struct {
	Scan     ScanConfig     `yaml:"scan"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Exclude  []string       `yaml:"exclude" validate:"dive,required,glob"`
	Log      LogConfig      `yaml:"log"`
}

// ScanConfig controls residual scanning.
type ScanConfig struct {
	FullCleanup         bool     `yaml:"full_cleanup"`
	ProtectedPublishers []string `yaml:"protected_publishers" validate:"dive,required"`
	Concurrency         int      `yaml:"concurrency" validate:"min=1,max=32"`
}

// CatalogConfig controls the installed-application list.
type CatalogConfig struct {
	ComputeSizes  bool   `yaml:"compute_sizes"`
	SizeBudget    string `yaml:"size_budget" validate:"duration"`
	HideMicrosoft bool   `yaml:"hide_microsoft"`
	Steam         bool   `yaml:"steam"`
	Limit         int    `yaml:"limit" validate:"min=0"`
}

// TimeoutsConfig bounds external tool calls.
type TimeoutsConfig struct {
	TaskQuery     string `yaml:"task_query" validate:"duration"`
	FirewallQuery string `yaml:"firewall_query" validate:"duration"`
	ServiceStop   string `yaml:"service_stop" validate:"duration"`
	Uninstaller   string `yaml:"uninstaller" validate:"duration"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Verbosity int `yaml:"verbosity" validate:"min=0,max=10"`
}

// Default returns a Config with all default values populated.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			FullCleanup: true,
			ProtectedPublishers: []string{
				"microsoft", "google", "nvidia", "intel", "amd", "valve", "adobe", "apple", "mozilla",
			},
			Concurrency: 4,
		},
		Catalog: CatalogConfig{
			ComputeSizes:  true,
			SizeBudget:    "6s",
			HideMicrosoft: true,
			Steam:         true,
			Limit:         200,
		},
		Timeouts: TimeoutsConfig{
			TaskQuery:     "15s",
			FirewallQuery: "15s",
			ServiceStop:   "15s",
			Uninstaller:   "5m",
		},
		Exclude: []string{},
	}
}

// DefaultPath returns %APPDATA%\zerotrace\config.yaml on Windows and the
// matching user config directory elsewhere.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, "zerotrace", "config.yaml"), nil
}

// Load loads config from the given path. If path is empty, it uses
// DefaultPath. If the file does not exist, it creates it with default values.
func Load(p string) (*Config, error) {
	if p == "" {
		var err error
		if p, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(p); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(p); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFrom(p)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(p string) (*Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		_, err := parseDuration(s)
		return err == nil
	})
	v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		_, err := path.Match(normalize(fl.Field().String()), "")
		return err == nil
	})
	return v
}

// Validate checks field constraints and returns one human-readable warning
// per violation. Invalid values fall back to defaults at the point of use,
// so warnings never stop the program.
func (c *Config) Validate() []string {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	warnings := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: value %v does not satisfy %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Value(), fe.Tag())
		if param := fe.Param(); param != "" {
			msg += "=" + param
		}
		warnings = append(warnings, msg)
	}
	return warnings
}

// normalize lowercases p and uses forward slashes so patterns and paths
// compare the same way on every host.
func normalize(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

// IsExcluded checks if the given path matches any of the configured
// exclude glob patterns, case-insensitively. Matching is done against the
// full path and against the base name. Patterns ending in "\**" or "/**"
// are treated as directory prefix matches.
func (c *Config) IsExcluded(p string) bool {
	if p == "" {
		return false
	}
	full := strings.TrimRight(normalize(p), "/")
	base := path.Base(full)
	for _, pattern := range c.Exclude {
		pat := normalize(strings.TrimSpace(pattern))
		if pat == "" {
			continue
		}

		// Handle "dir\**" as a prefix match.
		if prefix, ok := strings.CutSuffix(pat, "/**"); ok {
			if full == prefix || strings.HasPrefix(full, prefix+"/") {
				return true
			}
			continue
		}

		if matched, _ := path.Match(pat, full); matched {
			return true
		}
		// Match against the base name (for patterns like "*.log").
		if matched, _ := path.Match(pat, base); matched {
			return true
		}
	}
	return false
}

// SizeBudget is the per-folder time limit for app size computation.
func (c *Config) SizeBudget() time.Duration {
	return ParseDuration(c.Catalog.SizeBudget, 6*time.Second)
}

// TaskQueryTimeout bounds one scheduled-task query.
func (c *Config) TaskQueryTimeout() time.Duration {
	return ParseDuration(c.Timeouts.TaskQuery, 15*time.Second)
}

// FirewallQueryTimeout bounds one firewall rule query.
func (c *Config) FirewallQueryTimeout() time.Duration {
	return ParseDuration(c.Timeouts.FirewallQuery, 15*time.Second)
}

// ServiceStopTimeout bounds the wait for a service to stop.
func (c *Config) ServiceStopTimeout() time.Duration {
	return ParseDuration(c.Timeouts.ServiceStop, 15*time.Second)
}

// UninstallerTimeout bounds an application's own uninstaller.
func (c *Config) UninstallerTimeout() time.Duration {
	return ParseDuration(c.Timeouts.Uninstaller, 5*time.Minute)
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		if days, err := strconv.Atoi(numStr); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

// ParseDuration parses duration strings like "15s", "5m" or "1d" into
// time.Duration. Empty, unparseable or non-positive values return fallback.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := parseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
