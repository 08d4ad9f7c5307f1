package config

import (
	"fmt"
	"time"
)

// Config is the root configuration, read once at startup.
type Config struct {
	Risk    RiskConfig    `yaml:"risk"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Tools   ToolsConfig   `yaml:"tools"`
	Logging LoggingConfig `yaml:"logging"`
}

// RiskConfig tunes the risk analyzer.
type RiskConfig struct {
	// AllowedImports maps a language to the modules snippets may import.
	// A missing language keeps the conservative built-in default.
	AllowedImports map[string][]string `yaml:"allowedImports"`
	MaxLines       int                 `yaml:"maxLines"`
	MaxNesting     int                 `yaml:"maxNesting"`
}

// RuntimeConfig tunes the language runtimes.
type RuntimeConfig struct {
	// Languages lists the runtimes to enable, in detection priority order.
	Languages []string `yaml:"languages"`
	// DefaultTimeout applies when a request carries none.
	DefaultTimeoutSeconds int `yaml:"defaultTimeoutSeconds"`
	// MaxTimeout is the hard per-run ceiling.
	MaxTimeoutSeconds int `yaml:"maxTimeoutSeconds"`
	// OutputLimitBytes caps captured stdout per run.
	OutputLimitBytes int `yaml:"outputLimitBytes"`
	// ShellCommands overrides the shell runtime allow-list.
	ShellCommands []string `yaml:"shellCommands"`
}

// SandboxConfig tunes the container pool behind the docker runtimes.
type SandboxConfig struct {
	// Enabled selects docker-backed execution; when false only the
	// in-process and host-fallback runtimes are available.
	Enabled      bool   `yaml:"enabled"`
	PythonImage  string `yaml:"pythonImage"`
	NodeImage    string `yaml:"nodeImage"`
	ShellImage   string `yaml:"shellImage"`
	PoolSize     int    `yaml:"poolSize"`
	MemoryMB     int64  `yaml:"memoryMB"`
	CPUPercent   float64 `yaml:"cpuPercent"`
	MaxProcesses int64  `yaml:"maxProcesses"`
}

// ToolsConfig tunes the tool executor.
type ToolsConfig struct {
	CacheTTLSeconds  int `yaml:"cacheTTLSeconds"`
	BatchParallelism int `yaml:"batchParallelism"`
}

// LoggingConfig selects log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Development enables console-friendly output.
	Development bool `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Risk: RiskConfig{
			MaxLines:   500,
			MaxNesting: 8,
		},
		Runtime: RuntimeConfig{
			Languages:             []string{"python", "javascript", "lua", "shell"},
			DefaultTimeoutSeconds: 5,
			MaxTimeoutSeconds:     30,
			OutputLimitBytes:      10 * 1024,
		},
		Sandbox: SandboxConfig{
			Enabled:      true,
			PythonImage:  "python:3.12-alpine",
			NodeImage:    "node:22-alpine",
			ShellImage:   "alpine:3.21",
			PoolSize:     4,
			MemoryMB:     128,
			CPUPercent:   0.5,
			MaxProcesses: 32,
		},
		Tools: ToolsConfig{
			CacheTTLSeconds:  300,
			BatchParallelism: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if len(c.Runtime.Languages) == 0 {
		return fmt.Errorf("runtime.languages must name at least one language")
	}
	if c.Runtime.DefaultTimeoutSeconds <= 0 {
		return fmt.Errorf("runtime.defaultTimeoutSeconds must be positive")
	}
	if c.Runtime.MaxTimeoutSeconds < c.Runtime.DefaultTimeoutSeconds {
		return fmt.Errorf("runtime.maxTimeoutSeconds must be >= defaultTimeoutSeconds")
	}
	if c.Runtime.OutputLimitBytes <= 0 {
		return fmt.Errorf("runtime.outputLimitBytes must be positive")
	}
	if c.Sandbox.Enabled && c.Sandbox.PoolSize <= 0 {
		return fmt.Errorf("sandbox.poolSize must be positive")
	}
	if c.Tools.CacheTTLSeconds <= 0 {
		return fmt.Errorf("tools.cacheTTLSeconds must be positive")
	}
	if c.Tools.BatchParallelism <= 0 {
		return fmt.Errorf("tools.batchParallelism must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// DefaultTimeout returns the default run budget as a duration.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Runtime.DefaultTimeoutSeconds) * time.Second
}

// MaxTimeout returns the per-run ceiling as a duration.
func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.Runtime.MaxTimeoutSeconds) * time.Second
}

// CacheTTL returns the tool cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Tools.CacheTTLSeconds) * time.Second
}
