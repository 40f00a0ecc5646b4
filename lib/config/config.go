// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Switchyard.
//
// Configuration is loaded from a single file specified by:
//   - SWITCHYARD_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Switchyard.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Network configures the capability listener.
	Network NetworkConfig `yaml:"network"`

	// Web configures the HTTP surface.
	Web WebConfig `yaml:"web"`

	// Auth configures login and the access policy.
	Auth AuthConfig `yaml:"auth"`

	// Secrets configures where key material is read from.
	Secrets SecretsConfig `yaml:"secrets"`

	// Paths configures directory and file locations.
	Paths PathsConfig `yaml:"paths"`

	// EnvironmentOverrides contains per-environment overrides,
	// applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Network *NetworkConfig `yaml:"network,omitempty"`
	Web     *WebConfig     `yaml:"web,omitempty"`
	Auth    *AuthConfig    `yaml:"auth,omitempty"`
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
}

// NetworkConfig configures the capability listener.
type NetworkConfig struct {
	// PublicAddress is the "tcp:host:port" other processes dial.
	// Empty means client-only mode: no listener, no published
	// sturdy reference.
	PublicAddress string `yaml:"public_address"`

	// BindAddress is the host:port the listener binds internally.
	// Defaults to the host:port of PublicAddress.
	BindAddress string `yaml:"bind_address"`

	// ServiceLabel names the published capability service.
	// Default: frontend
	ServiceLabel string `yaml:"service_label"`
}

// WebConfig configures the HTTP surface.
type WebConfig struct {
	// Address is the TCP listen address for the web server.
	// Default: 127.0.0.1:8080
	Address string `yaml:"address"`

	// SecureCookies marks session cookies Secure. Forced off in
	// development.
	SecureCookies bool `yaml:"secure_cookies"`

	// SessionTTL is how long login sessions stay valid.
	// Default: 12h
	SessionTTL string `yaml:"session_ttl"`
}

// AuthConfig configures login and the access policy.
type AuthConfig struct {
	// Enabled turns authentication on. When false the whole policy
	// is replaced by allow-all and secure cookies are disabled —
	// this is a deployment-mode switch selected once at startup.
	Enabled bool `yaml:"enabled"`

	// Privileged lists caller identities granted every role.
	Privileged []string `yaml:"privileged"`

	// Users maps identity to the hex SHA-256 digest of its password.
	Users map[string]string `yaml:"users"`
}

// SecretsConfig configures where key material is read from. Each
// entry is a file path; "-" reads from stdin.
type SecretsConfig struct {
	// SeedFile holds the network identity seed.
	SeedFile string `yaml:"seed_file"`

	// WebhookSecretFile holds the webhook shared secret.
	WebhookSecretFile string `yaml:"webhook_secret_file"`

	// SessionSecretFile holds the session-cookie signing secret.
	SessionSecretFile string `yaml:"session_secret_file"`
}

// PathsConfig configures directory and file locations.
type PathsConfig struct {
	// Root is the base directory for Switchyard data.
	Root string `yaml:"root"`

	// State is where runtime state is stored.
	State string `yaml:"state"`

	// SturdyRef is where the published capability reference is
	// written. Default: ${State}/frontend.ref
	SturdyRef string `yaml:"sturdy_ref"`

	// SubmissionRef, when set, is a sturdy-ref file naming the
	// submission backend pending refs are handed to.
	SubmissionRef string `yaml:"submission_ref"`
}

// Default returns the default configuration. These defaults ensure
// all fields have sensible zero-values before the file is loaded —
// the config file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "switchyard")

	return &Config{
		Environment: Development,
		Network: NetworkConfig{
			ServiceLabel: "frontend",
		},
		Web: WebConfig{
			Address:       "127.0.0.1:8080",
			SecureCookies: true,
			SessionTTL:    "12h",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Paths: PathsConfig{
			Root:      defaultRoot,
			State:     filepath.Join(defaultRoot, "state"),
			SturdyRef: filepath.Join(defaultRoot, "state", "frontend.ref"),
		},
	}
}

// Load loads configuration from the SWITCHYARD_CONFIG environment
// variable. There are no fallbacks: if it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SWITCHYARD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SWITCHYARD_CONFIG environment variable not set; " +
			"set it to the path of your switchyard.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific section.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
		// Development never enforces secure cookies: there is no
		// TLS terminator in front of a laptop.
		c.Web.SecureCookies = false
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Network != nil {
		if overrides.Network.PublicAddress != "" {
			c.Network.PublicAddress = overrides.Network.PublicAddress
		}
		if overrides.Network.BindAddress != "" {
			c.Network.BindAddress = overrides.Network.BindAddress
		}
		if overrides.Network.ServiceLabel != "" {
			c.Network.ServiceLabel = overrides.Network.ServiceLabel
		}
	}

	if overrides.Web != nil {
		if overrides.Web.Address != "" {
			c.Web.Address = overrides.Web.Address
		}
		if overrides.Web.SessionTTL != "" {
			c.Web.SessionTTL = overrides.Web.SessionTTL
		}
	}

	if overrides.Auth != nil {
		c.Auth.Enabled = overrides.Auth.Enabled
		if len(overrides.Auth.Privileged) > 0 {
			c.Auth.Privileged = overrides.Auth.Privileged
		}
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.SturdyRef != "" {
			c.Paths.SturdyRef = overrides.Paths.SturdyRef
		}
		if overrides.Paths.SubmissionRef != "" {
			c.Paths.SubmissionRef = overrides.Paths.SubmissionRef
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SWITCHYARD_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SWITCHYARD_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.SturdyRef = expandVars(c.Paths.SturdyRef, vars)
	c.Paths.SubmissionRef = expandVars(c.Paths.SubmissionRef, vars)
	c.Secrets.SeedFile = expandVars(c.Secrets.SeedFile, vars)
	c.Secrets.WebhookSecretFile = expandVars(c.Secrets.WebhookSecretFile, vars)
	c.Secrets.SessionSecretFile = expandVars(c.Secrets.SessionSecretFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// SessionTTL parses the configured session lifetime.
func (c *Config) SessionTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Web.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("web.session_ttl: %w", err)
	}
	return ttl, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Web.Address == "" {
		errs = append(errs, fmt.Errorf("web.address is required"))
	}

	if c.Network.ServiceLabel == "" {
		errs = append(errs, fmt.Errorf("network.service_label is required"))
	}

	if c.Network.PublicAddress != "" {
		if c.Secrets.SeedFile == "" {
			errs = append(errs, fmt.Errorf("secrets.seed_file is required when network.public_address is set"))
		}
		if c.Paths.SturdyRef == "" {
			errs = append(errs, fmt.Errorf("paths.sturdy_ref is required when network.public_address is set"))
		}
	}

	if c.Auth.Enabled && c.Secrets.SessionSecretFile == "" {
		errs = append(errs, fmt.Errorf("secrets.session_secret_file is required when auth is enabled"))
	}

	if _, err := c.SessionTTL(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.State} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
