package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/shellrun/internal/config"
	"github.com/npratt/shellrun/internal/fanout"
	"github.com/npratt/shellrun/internal/metrics"
	"github.com/npratt/shellrun/internal/runner"
	"github.com/npratt/shellrun/internal/shutdown"
)

var version = "dev"

// Exit codes for outcomes that have no child exit status of their own.
const (
	exitCanceled    = 130
	exitSpawnFailed = 127
)

// exitError carries the process exit code for a command that already
// reported its outcome to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds what every subcommand shares.
type app struct {
	v        *viper.Viper
	logger   *slog.Logger
	logLevel *slog.LevelVar
	stdout   io.Writer
	stderr   io.Writer

	// newExecutor builds the executor for a loaded config. Tests replace it
	// with a mock.
	newExecutor func(cfg *config.Config, logger *slog.Logger, rec runner.Recorder) fanout.Executor
}

// session is the per-invocation state built from the effective config.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	exec     fanout.Executor
	services []shutdown.Shutdowner
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := SetupLoggerWithWriter(os.Stderr, logLevel)

	a := &app{
		v:           newViper(),
		logger:      logger,
		logLevel:    logLevel,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		newExecutor: newRunner,
	}

	if err := a.rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(a.exitCode(err))
	}
}

// newViper returns a viper instance reading SHELLRUN_* variables, with
// nested keys such as shell.path read from SHELLRUN_SHELL_PATH.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SHELLRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func newRunner(cfg *config.Config, logger *slog.Logger, rec runner.Recorder) fanout.Executor {
	opts := append(cfg.RunnerOptions(), runner.WithLogger(logger))
	if rec != nil {
		opts = append(opts, runner.WithRecorder(rec))
	}
	return runner.New(opts...)
}

// exitCode maps a command error to a process exit code.
func (a *app) exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	a.logger.Error("command failed", "error", err)
	return 1
}

// outcomeExitCode mirrors the child's exit status where there is one.
func outcomeExitCode(o runner.Outcome) int {
	switch o.Status {
	case runner.StatusSucceeded:
		return 0
	case runner.StatusFailed:
		return o.ExitCode
	case runner.StatusCanceled:
		return exitCanceled
	default:
		return exitSpawnFailed
	}
}

// loadConfig applies --verbose, loads the effective config and applies the
// flags that have no config key of their own.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if a.v.GetBool(FlagVerbose) {
		a.logLevel.Set(slog.LevelDebug)
		a.logger.Debug("verbose logging enabled")
	}

	cfg, err := config.LoadConfig(a.v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed(FlagNoLogin) {
		noLogin, _ := cmd.Flags().GetBool(FlagNoLogin)
		cfg.Shell.Login = !noLogin
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newSession builds the executor and starts the metrics endpoint when one
// is configured. Callers must call close.
func (a *app) newSession(cfg *config.Config, logger *slog.Logger) (*session, error) {
	s := &session{cfg: cfg, logger: logger}

	var rec runner.Recorder
	if cfg.Metrics.Addr != "" {
		collector := metrics.NewCollector()
		srv := metrics.NewServer(cfg.Metrics.Addr, collector, logger)
		if err := srv.Start(); err != nil {
			return nil, err
		}
		logger.Info("metrics endpoint listening", "addr", srv.Addr())
		rec = collector
		s.services = append(s.services, srv)
	}

	s.exec = a.newExecutor(cfg, logger, rec)
	return s, nil
}

// run executes fn with signal handling. SIGINT and SIGTERM cancel the
// context passed to fn, which turns an in-flight command into a canceled
// outcome.
func (s *session) run(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := s.cfg.Shell.KillGrace + s.cfg.Shell.DrainTimeout + time.Second
	return shutdown.RunWithGracefulShutdown(ctx, s.logger, timeout, fn, nil)
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown.All(s.services...)(ctx); err != nil {
		s.logger.Warn("service shutdown failed", "error", err)
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shellrun",
		Short: "Run shell commands with live output and cancellation",
		Long: `shellrun runs command lines through a login shell, streams their combined
output as it arrives and cancels them cleanly on request.

Named commands and Xcode build targets come from .shellrun/config.yaml.
Build targets can be archived and exported concurrently. Without a
subcommand on a terminal, shellrun opens the button panel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(a.stdout) {
				return cmd.Help()
			}
			return a.runTUI(cmd)
		},
	}

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	// Persistent flags available to all commands
	flags := rootCmd.PersistentFlags()
	flags.Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	flags.String(FlagConfig, "", "Config file path (default: .shellrun/config.yaml)")
	flags.String(FlagLogFile, "", "Log file path for the TUI")
	flags.String(FlagShell, "", "Shell used to run commands (default: /bin/sh)")
	flags.Bool(FlagNoLogin, false, "Do not start the shell as a login shell")
	flags.String(FlagMetricsAddr, "", "Serve Prometheus metrics on this address")

	// Bind all flags to viper under their config keys
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := configKeys[f.Name]; ok {
			_ = a.v.BindPFlag(key, f)
		}
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "shellrun %s\n", version)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(a.runCmd())
	rootCmd.AddCommand(a.samplesCmd())
	rootCmd.AddCommand(a.fanOutCmd(actionArchive))
	rootCmd.AddCommand(a.fanOutCmd(actionExport))
	rootCmd.AddCommand(a.tuiCmd())
	rootCmd.AddCommand(a.configCmd())

	return rootCmd
}
