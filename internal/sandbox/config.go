// Package sandbox provides a locked-down container environment for running
// untrusted snippets, with a guarded host fallback when Docker is absent.
package sandbox

import "time"

// Default configuration values.
const (
	DefaultImage        = "alpine:3.21"
	DefaultMemoryMB     = 128
	DefaultCPUPercent   = 0.5
	DefaultMaxProcesses = 32
	DefaultTimeout      = 30 * time.Second
	DefaultWorkDir      = "/workspace"
)

// Config holds settings for a sandbox container.
type Config struct {
	// Image is the container image to run snippets in.
	Image string

	// MemoryMB is the memory limit in megabytes. Swap is disabled.
	MemoryMB int64

	// CPUPercent is the CPU limit as a fraction of one CPU (0.0-1.0).
	CPUPercent float64

	// MaxProcesses caps the number of PIDs inside the container.
	MaxProcesses int64

	// WorkDir is the working directory inside the container.
	WorkDir string

	// Timeout bounds container lifecycle operations (start, stop). Per-run
	// execution deadlines are carried on the caller's context instead.
	Timeout time.Duration
}

// DefaultConfig returns a Config with conservative defaults: no network,
// tight memory, half a CPU.
func DefaultConfig() Config {
	return Config{
		Image:        DefaultImage,
		MemoryMB:     DefaultMemoryMB,
		CPUPercent:   DefaultCPUPercent,
		MaxProcesses: DefaultMaxProcesses,
		WorkDir:      DefaultWorkDir,
		Timeout:      DefaultTimeout,
	}
}

// WithImage returns a copy of the config with the specified image.
func (c Config) WithImage(image string) Config {
	c.Image = image
	return c
}

// WithMemoryMB returns a copy of the config with the specified memory limit.
func (c Config) WithMemoryMB(mb int64) Config {
	c.MemoryMB = mb
	return c
}

// Validate applies defaults to zero or out-of-range fields.
func (c *Config) Validate() {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = DefaultMemoryMB
	}
	if c.CPUPercent <= 0 || c.CPUPercent > 1.0 {
		c.CPUPercent = DefaultCPUPercent
	}
	if c.MaxProcesses <= 0 {
		c.MaxProcesses = DefaultMaxProcesses
	}
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}
