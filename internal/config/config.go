package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Workspace *WorkspaceConfig        `yaml:"workspace"`
	Gateway   *GatewayConfig          `yaml:"gateway"`
	Tools     *ToolsConfig            `yaml:"tools"`
	Audit     *AuditConfig            `yaml:"audit"`
	Log       *LogConfig              `yaml:"log"`
	Agents    map[string]*AgentConfig `yaml:"agents"`
}

// WorkspaceConfig describes the codebase the team works on
type WorkspaceConfig struct {
	Root      string `yaml:"root"`
	Task      string `yaml:"task,omitempty"`
	MaxRounds int    `yaml:"maxRounds"`
}

// GatewayConfig contains gateway settings
type GatewayConfig struct {
	Port           int      `yaml:"port"`
	Bind           string   `yaml:"bind"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ToolsConfig controls which tools agents may call
type ToolsConfig struct {
	Allowed            []string `yaml:"allowed,omitempty"`
	SearchMaxMatches   int      `yaml:"searchMaxMatches,omitempty"`
	ExcludedExtensions []string `yaml:"excludedExtensions,omitempty"`
}

// AuditConfig controls the invocation log
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig controls logger output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AgentConfig describes one participant in the conversation
type AgentConfig struct {
	Role           string  `yaml:"role"`
	Model          string  `yaml:"model,omitempty"`
	BaseURL        string  `yaml:"baseURL,omitempty"`
	APIKey         string  `yaml:"apiKey,omitempty"`
	APIKeyEnv      string  `yaml:"apiKeyEnv,omitempty"`
	Temperature    float64 `yaml:"temperature,omitempty"`
	TimeoutSeconds int     `yaml:"timeoutSeconds,omitempty"`
	Tools          bool    `yaml:"tools,omitempty"`
}

const (
	RolePlanner   = "planner"
	RoleDeveloper = "developer"
	RoleReviewer  = "reviewer"
	RoleProxy     = "proxy"
)

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Workspace: &WorkspaceConfig{
			Root:      ".",
			MaxRounds: 20,
		},
		Gateway: &GatewayConfig{
			Port: 18790,
			Bind: "127.0.0.1",
		},
		Tools: &ToolsConfig{
			Allowed: []string{"list_files", "read_file", "write_file", "search_files"},
		},
		Audit: &AuditConfig{
			Enabled: false,
			Path:    "./.codeteam/audit.db",
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "text",
		},
		Agents: DefaultAgents(),
	}
}

// DefaultAgents returns the admin, planner, developer and reviewer roster.
func DefaultAgents() map[string]*AgentConfig {
	return map[string]*AgentConfig{
		"Admin": {
			Role:  RoleProxy,
			Tools: true,
		},
		"Planner": {
			Role:        RolePlanner,
			Model:       "gpt-4o",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.2,
		},
		"Developer": {
			Role:           RoleDeveloper,
			Model:          "llama3.1",
			BaseURL:        "http://localhost:11434/v1",
			APIKey:         "ollama",
			Temperature:    0.5,
			TimeoutSeconds: 120,
			Tools:          true,
		},
		"Reviewer": {
			Role:        RoleReviewer,
			Model:       "gpt-4o",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.2,
		},
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Workspace == nil {
		c.Workspace = defaults.Workspace
	}
	if strings.TrimSpace(c.Workspace.Root) == "" {
		c.Workspace.Root = "."
	}
	if c.Workspace.MaxRounds == 0 {
		c.Workspace.MaxRounds = defaults.Workspace.MaxRounds
	}
	if c.Gateway == nil {
		c.Gateway = defaults.Gateway
	}
	if strings.TrimSpace(c.Gateway.Bind) == "" {
		c.Gateway.Bind = defaults.Gateway.Bind
	}
	if c.Tools == nil {
		c.Tools = defaults.Tools
	}
	if c.Audit == nil {
		c.Audit = defaults.Audit
	}
	if strings.TrimSpace(c.Audit.Path) == "" {
		c.Audit.Path = defaults.Audit.Path
	}
	if c.Log == nil {
		c.Log = defaults.Log
	}
	if len(c.Agents) == 0 {
		c.Agents = defaults.Agents
	}
	for _, agent := range c.Agents {
		if agent == nil {
			continue
		}
		agent.BaseURL = normalizeBaseURL(agent.BaseURL)
	}
}

// Validate checks value ranges and names the offending key.
func (c *Config) Validate() error {
	if c.Workspace != nil && c.Workspace.MaxRounds < 0 {
		return fmt.Errorf("workspace.maxRounds must be positive, got %d", c.Workspace.MaxRounds)
	}
	if c.Gateway != nil && (c.Gateway.Port < 0 || c.Gateway.Port > 65535) {
		return fmt.Errorf("gateway.port must be between 0 and 65535, got %d", c.Gateway.Port)
	}
	if c.Tools != nil {
		if c.Tools.SearchMaxMatches < 0 {
			return fmt.Errorf("tools.searchMaxMatches must not be negative, got %d", c.Tools.SearchMaxMatches)
		}
		for i, name := range c.Tools.Allowed {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("tools.allowed[%d] must not be empty", i)
			}
		}
	}
	if c.Log != nil {
		switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
		case "", "text", "json":
		default:
			return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
		}
	}
	for _, name := range c.AgentNames() {
		agent := c.Agents[name]
		key := "agents." + name
		if agent == nil {
			return fmt.Errorf("%s must not be empty", key)
		}
		if strings.ContainsAny(name, " \t\n") {
			return fmt.Errorf("%s: agent name must not contain whitespace", key)
		}
		switch agent.Role {
		case RolePlanner, RoleDeveloper, RoleReviewer, RoleProxy:
		default:
			return fmt.Errorf("%s.role must be one of planner, developer, reviewer, proxy; got %q", key, agent.Role)
		}
		if agent.Temperature < 0 || agent.Temperature > 2 {
			return fmt.Errorf("%s.temperature must be between 0 and 2, got %v", key, agent.Temperature)
		}
		if agent.TimeoutSeconds < 0 {
			return fmt.Errorf("%s.timeoutSeconds must not be negative, got %d", key, agent.TimeoutSeconds)
		}
		if agent.Role != RoleProxy && strings.TrimSpace(agent.Model) == "" {
			return fmt.Errorf("%s.model is required", key)
		}
	}
	return nil
}

// AgentNames returns configured agent names in sorted order.
func (c *Config) AgentNames() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveCredentials fills empty API keys from apiKeyEnv using lookup.
// The process environment is never consulted directly.
func (c *Config) ResolveCredentials(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	for _, agent := range c.Agents {
		if agent == nil || agent.APIKey != "" || agent.APIKeyEnv == "" {
			continue
		}
		if value, ok := lookup(agent.APIKeyEnv); ok {
			agent.APIKey = value
		}
	}
}

// LoadDotEnv reads a .env file into a lookup function. A missing file yields
// an empty lookup.
func LoadDotEnv(path string) (func(string) (string, bool), error) {
	values := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		values, err = godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}, nil
}

// ChainLookup tries each lookup in order.
func ChainLookup(lookups ...func(string) (string, bool)) func(string) (string, bool) {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if value, ok := lookup(key); ok {
				return value, true
			}
		}
		return "", false
	}
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "http") {
		return "http://" + trimmed
	}
	return trimmed
}
