package config

import (
	"fmt"
	"time"
)

// ============================================================================
// CONFIGURATION TYPES
// ============================================================================

// Config is the root fleet configuration.
type Config struct {
	// Logger configures structured logging output.
	Logger LoggerConfig `yaml:"logger,omitempty"`

	// Session configures session persistence.
	Session SessionConfig `yaml:"session,omitempty"`

	// Orchestrator tunes the execution engine.
	Orchestrator OrchestratorConfig `yaml:"orchestrator,omitempty"`

	// Agents is the catalog of remote agents available for dispatch.
	Agents []*AgentConfig `yaml:"agents,omitempty"`
}

// LoggerConfig configures the slog-based logger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`

	// File is an optional log file path. Empty means stderr.
	File string `yaml:"file,omitempty"`
}

// SessionConfig selects the session backend.
type SessionConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// Path is the sqlite database path when Backend is "sqlite".
	Path string `yaml:"path,omitempty"`
}

// OrchestratorConfig tunes dispatch and planning behavior.
type OrchestratorConfig struct {
	// MaxIterations bounds the planning loop.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// RequestTimeout caps a single remote agent call.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// RetryBudget is how many failed dispatches the planning loop
	// absorbs before it stops and surfaces recovery options.
	RetryBudget int `yaml:"retry_budget,omitempty"`

	// CooldownCap bounds how long a dispatch waits on an agent cooldown.
	CooldownCap time.Duration `yaml:"cooldown_cap,omitempty"`
}

// AgentConfig describes one remote agent endpoint.
type AgentConfig struct {
	// Name identifies the agent for dispatch and workflow hints.
	Name string `yaml:"name"`

	// Description aids planner and selector matching.
	Description string `yaml:"description,omitempty"`

	// URL is the agent's A2A endpoint.
	URL string `yaml:"url"`

	// Skills lists skill names used for capability matching.
	Skills []string `yaml:"skills,omitempty"`

	// Auth optionally configures outbound credentials.
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig holds outbound credentials for a remote agent.
type AuthConfig struct {
	// Type is "bearer" or "api_key".
	Type string `yaml:"type"`

	// Token is the credential value. Supports ${VAR} expansion.
	Token string `yaml:"token"`

	// Header overrides the header name for api_key auth.
	Header string `yaml:"header,omitempty"`
}

// ============================================================================
// DEFAULTS
// ============================================================================

// SetDefaults applies defaults to the whole configuration tree.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	c.Session.SetDefaults()
	c.Orchestrator.SetDefaults()
}

// SetDefaults applies default values to LoggerConfig.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// SetDefaults applies default values to SessionConfig.
func (c *SessionConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "fleet-sessions.db"
	}
}

// SetDefaults applies default values to OrchestratorConfig.
func (c *OrchestratorConfig) SetDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 180 * time.Second
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = 2
	}
	if c.CooldownCap <= 0 {
		c.CooldownCap = 60 * time.Second
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks the configuration tree for errors.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	seen := make(map[string]bool, len(c.Agents))
	for i, agent := range c.Agents {
		if agent == nil {
			return fmt.Errorf("agents[%d]: empty entry", i)
		}
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", agent.Name, err)
		}
		if seen[agent.Name] {
			return fmt.Errorf("agent %q: duplicate name", agent.Name)
		}
		seen[agent.Name] = true
	}
	return nil
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (valid: text, json)", c.Format)
	}
	return nil
}

// Validate checks the session configuration.
func (c *SessionConfig) Validate() error {
	switch c.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, sqlite)", c.Backend)
	}
	return nil
}

// Validate checks one agent entry.
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Auth != nil {
		switch c.Auth.Type {
		case "bearer", "api_key":
		default:
			return fmt.Errorf("invalid auth type %q (valid: bearer, api_key)", c.Auth.Type)
		}
	}
	return nil
}
