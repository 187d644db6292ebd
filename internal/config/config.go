// Package config provides configuration types and defaults for shellrun.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/npratt/shellrun/internal/buildtarget"
	"github.com/npratt/shellrun/internal/runner"
)

// Config holds all configuration for shellrun.
type Config struct {
	Shell       ShellConfig       `yaml:"shell" mapstructure:"shell"`
	Commands    []CommandConfig   `yaml:"commands" mapstructure:"commands"`
	Targets     []TargetConfig    `yaml:"targets" mapstructure:"targets"`
	FanOut      FanOutConfig      `yaml:"fanout" mapstructure:"fanout"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// ShellConfig controls how commands are started.
type ShellConfig struct {
	Path         string        `yaml:"path" mapstructure:"path"`
	Login        bool          `yaml:"login" mapstructure:"login"`                 // Pass -l so the user's profile is loaded
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"` // Bound on reading output after exit
	KillGrace    time.Duration `yaml:"kill_grace" mapstructure:"kill_grace"`       // SIGTERM to SIGKILL delay on cancel
}

// CommandConfig is a named command line offered by `run --sample` and the TUI.
type CommandConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Command     string `yaml:"command" mapstructure:"command"`
	Dir         string `yaml:"dir,omitempty" mapstructure:"dir"`
	Description string `yaml:"description,omitempty" mapstructure:"description"`
}

// TargetConfig is an Xcode project to archive and export.
type TargetConfig struct {
	Name          string `yaml:"name" mapstructure:"name"`
	ProjectFile   string `yaml:"project_file" mapstructure:"project_file"`
	Scheme        string `yaml:"scheme" mapstructure:"scheme"`
	Configuration string `yaml:"configuration,omitempty" mapstructure:"configuration"`
}

// FanOutConfig holds settings for running several targets at once.
type FanOutConfig struct {
	FailFast bool `yaml:"fail_fast" mapstructure:"fail_fast"` // Cancel the rest after the first failure
}

// PathsConfig holds file paths.
type PathsConfig struct {
	Log string `yaml:"log" mapstructure:"log"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the TUI log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // Listen address; empty disables the endpoint
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			Path:         runner.DefaultShell,
			Login:        true,
			DrainTimeout: runner.DefaultDrainTimeout,
			KillGrace:    runner.DefaultKillGrace,
		},
		Commands: []CommandConfig{
			{Name: "echo", Command: "echo ~/Desktop", Description: "Print the expanded Desktop path"},
			{Name: "ping", Command: "ping example.com", Description: "Ping until canceled"},
			{Name: "ls", Command: "ls -l ~/Desktop", Description: "List the Desktop"},
		},
		Targets: []TargetConfig{},
		FanOut: FanOutConfig{
			FailFast: false,
		},
		Paths: PathsConfig{
			Log: ".shellrun/shellrun.log",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Shell.Path == "" {
		errs = append(errs, errors.New("shell.path must not be empty"))
	}
	if c.Shell.DrainTimeout < 0 {
		errs = append(errs, fmt.Errorf("shell.drain_timeout must not be negative, got %v", c.Shell.DrainTimeout))
	}
	if c.Shell.KillGrace < 0 {
		errs = append(errs, fmt.Errorf("shell.kill_grace must not be negative, got %v", c.Shell.KillGrace))
	}

	seen := make(map[string]bool)
	for i, cmd := range c.Commands {
		switch {
		case cmd.Name == "":
			errs = append(errs, fmt.Errorf("commands[%d]: name is required", i))
		case seen[cmd.Name]:
			errs = append(errs, fmt.Errorf("commands[%d]: duplicate name %q", i, cmd.Name))
		}
		if cmd.Command == "" {
			errs = append(errs, fmt.Errorf("commands[%d]: command is required", i))
		}
		seen[cmd.Name] = true
	}

	seen = make(map[string]bool)
	for i, tc := range c.Targets {
		if tc.Name == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: name is required", i))
		} else if seen[tc.Name] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate name %q", i, tc.Name))
		}
		seen[tc.Name] = true
		if err := tc.BuildTarget().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Command returns the named command.
func (c *Config) Command(name string) (CommandConfig, bool) {
	for _, cmd := range c.Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return CommandConfig{}, false
}

// Target returns the named build target.
func (c *Config) Target(name string) (buildtarget.Target, bool) {
	for _, tc := range c.Targets {
		if tc.Name == name {
			return tc.BuildTarget(), true
		}
	}
	return buildtarget.Target{}, false
}

// BuildTargets returns every configured target.
func (c *Config) BuildTargets() []buildtarget.Target {
	targets := make([]buildtarget.Target, 0, len(c.Targets))
	for _, tc := range c.Targets {
		targets = append(targets, tc.BuildTarget())
	}
	return targets
}

// BuildTarget converts the config entry into a buildtarget.Target.
func (tc TargetConfig) BuildTarget() buildtarget.Target {
	return buildtarget.Target{
		Name:          tc.Name,
		ProjectFile:   tc.ProjectFile,
		Scheme:        tc.Scheme,
		Configuration: tc.Configuration,
	}
}

// RunnerOptions translates the shell section into runner options.
func (c *Config) RunnerOptions() []runner.Option {
	return []runner.Option{
		runner.WithShell(c.Shell.Path),
		runner.WithLogin(c.Shell.Login),
		runner.WithDrainTimeout(c.Shell.DrainTimeout),
		runner.WithKillGrace(c.Shell.KillGrace),
	}
}
