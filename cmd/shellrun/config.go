package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose     = "verbose"
	FlagConfig      = "config"
	FlagLogFile     = "log-file"
	FlagShell       = "shell"
	FlagNoLogin     = "no-login"
	FlagMetricsAddr = "metrics-addr"

	// Run command flags
	FlagDir    = "dir"
	FlagSample = "sample"

	// Config command flags
	FlagFiles = "files"

	// Archive and export command flags
	FlagTarget   = "target"
	FlagFailFast = "fail-fast"
)

// configKeys maps global flags onto the config keys they override, so a flag
// flows through the same viper lookup as files and SHELLRUN_* variables.
var configKeys = map[string]string{
	FlagVerbose:     FlagVerbose,
	FlagConfig:      FlagConfig,
	FlagLogFile:     "paths.log",
	FlagShell:       "shell.path",
	FlagMetricsAddr: "metrics.addr",
}
