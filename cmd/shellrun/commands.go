package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/npratt/shellrun/internal/buildtarget"
	"github.com/npratt/shellrun/internal/config"
	"github.com/npratt/shellrun/internal/fanout"
	"github.com/npratt/shellrun/internal/runner"
	"github.com/npratt/shellrun/internal/tui"
)

// fanOutAction selects which build step a fan-out runs per target.
type fanOutAction string

const (
	actionArchive fanOutAction = "archive"
	actionExport  fanOutAction = "export"
)

func (a fanOutAction) commandLine(t buildtarget.Target) string {
	if a == actionExport {
		return t.ExportCommand()
	}
	return t.ArchiveCommand()
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [--sample NAME | command words...]",
		Short: "Run one command line",
		Long: `Run one command line through the configured shell.

Output is streamed as it arrives when stdout is a terminal, otherwise it is
printed once the command exits. The exit status mirrors the command's own:
127 if the shell could not be started and 130 if the run was interrupted.`,
		Example: `  shellrun run echo ~/Desktop
  shellrun run --sample ping
  shellrun run --dir ~/src -- ls -l`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			req, err := buildRequest(cmd, cfg, args)
			if err != nil {
				return err
			}

			s, err := a.newSession(cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			streaming := isTerminal(out)
			if streaming {
				req.Tee = out
			}

			var outcome runner.Outcome
			err = s.run(cmd.Context(), func(ctx context.Context) error {
				output, runErr := s.exec.Run(ctx, req)
				outcome = runner.OutcomeOf(output, runErr)
				return nil
			})
			if err != nil {
				return err
			}

			return report(out, cmd.ErrOrStderr(), outcome, streaming)
		},
	}

	cmd.Flags().String(FlagDir, "", "Working directory for the command (~ is expanded)")
	cmd.Flags().String(FlagSample, "", "Run a named command from the config")

	return cmd
}

// buildRequest resolves the command line from --sample or the arguments.
func buildRequest(cmd *cobra.Command, cfg *config.Config, args []string) (runner.Request, error) {
	sample, _ := cmd.Flags().GetString(FlagSample)
	dir, _ := cmd.Flags().GetString(FlagDir)

	var req runner.Request
	switch {
	case sample != "" && len(args) > 0:
		return req, errors.New("use either --sample or a command line, not both")
	case sample != "":
		c, ok := cfg.Command(sample)
		if !ok {
			return req, fmt.Errorf("unknown sample %q (see shellrun samples)", sample)
		}
		req.CommandLine = c.Command
		req.Dir = c.Dir
	case len(args) > 0:
		req.CommandLine = strings.Join(args, " ")
	default:
		return req, errors.New("no command given")
	}

	if cmd.Flags().Changed(FlagDir) {
		req.Dir = dir
	}
	return req, nil
}

// report prints the outcome and returns an exitError for anything but
// success. Output already streamed to a terminal is not printed again.
func report(stdout, stderr io.Writer, o runner.Outcome, streamed bool) error {
	if o.OK() {
		if !streamed {
			_, _ = io.WriteString(stdout, o.Output)
		}
		return nil
	}

	msg := o.Message()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = io.WriteString(stderr, msg)
	return &exitError{code: outcomeExitCode(o)}
}

func (a *app) samplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List the configured commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "COMMAND", "DIR", "DESCRIPTION")
			for _, c := range cfg.Commands {
				t.Row(c.Name, c.Command, c.Dir, c.Description)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
}

func (a *app) fanOutCmd(action fanOutAction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(action),
		Short: fmt.Sprintf("Run xcodebuild %s for every configured target at once", action),
		Long: fmt.Sprintf(`Run xcodebuild %s for the configured build targets concurrently.

Each result is printed as soon as its target finishes. With --fail-fast the
first failure cancels the targets still running. The exit status is 1 when
any target did not succeed.`, action),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(FlagFailFast) {
				cfg.FanOut.FailFast, _ = cmd.Flags().GetBool(FlagFailFast)
			}

			names, _ := cmd.Flags().GetStringSlice(FlagTarget)
			targets, err := selectTargets(cfg, names)
			if err != nil {
				return err
			}

			jobs := make([]fanout.Job, 0, len(targets))
			for _, t := range targets {
				jobs = append(jobs, fanout.Job{
					Name:    t.DisplayName(),
					Request: runner.Request{CommandLine: action.commandLine(t)},
				})
			}

			s, err := a.newSession(cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()

			var failed int
			err = s.run(cmd.Context(), func(ctx context.Context) error {
				group := fanout.New(s.exec, fanout.WithFailFast(cfg.FanOut.FailFast), fanout.WithLogger(a.logger))
				results, err := group.Start(ctx, jobs)
				if err != nil {
					return err
				}
				for r := range results {
					if !r.Outcome.OK() {
						failed++
					}
					printResult(cmd.OutOrStdout(), r)
				}
				return nil
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d targets succeeded\n", action, len(jobs)-failed, len(jobs))
			if failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringSlice(FlagTarget, nil, "Target to include (repeatable, default: all)")
	cmd.Flags().Bool(FlagFailFast, false, "Cancel the remaining targets after the first failure")

	return cmd
}

// selectTargets returns the named targets, or all of them when names is
// empty. Every selected target must be complete.
func selectTargets(cfg *config.Config, names []string) ([]buildtarget.Target, error) {
	var targets []buildtarget.Target
	if len(names) == 0 {
		targets = cfg.BuildTargets()
	} else {
		for _, name := range names {
			t, ok := cfg.Target(name)
			if !ok {
				return nil, fmt.Errorf("unknown target %q", name)
			}
			targets = append(targets, t)
		}
	}

	if len(targets) == 0 {
		return nil, errors.New("no targets configured")
	}

	var errs []error
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", t.DisplayName(), err))
		}
	}
	return targets, errors.Join(errs...)
}

func printResult(w io.Writer, r fanout.Result) {
	_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", r.Name, r.Outcome.Status, r.Elapsed.Round(time.Millisecond))
	if !r.Outcome.OK() {
		msg := strings.TrimRight(r.Outcome.Message(), "\n")
		_, _ = fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(msg, "\n", "\n  "))
	}
}

func (a *app) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the button panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}
}

// runTUI runs the button panel with logging redirected to the rotated log
// file.
func (a *app) runTUI(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	logResult := SetupFileLogger(cfg.Paths.Log, a.logLevel, cfg.LogRotation)
	defer func() { _ = logResult.Close() }()
	logger := logResult.Logger

	s, err := a.newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	commands := make([]tui.Command, 0, len(cfg.Commands))
	for _, c := range cfg.Commands {
		commands = append(commands, tui.Command{Name: c.Name, CommandLine: c.Command, Dir: c.Dir})
	}

	panel := tui.New(s.exec,
		tui.WithCommands(commands...),
		tui.WithTargets(cfg.BuildTargets()...),
		tui.WithFailFast(cfg.FanOut.FailFast),
		tui.WithLogger(logger),
	)

	logger.Info("shellrun tui starting", "version", version, "shell", cfg.Shell.Path, "commands", len(commands))

	err = s.run(cmd.Context(), panel.Run)
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the effective configuration as YAML. With --files, print the
config files that were merged instead, lowest precedence first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if showFiles, _ := cmd.Flags().GetBool(FlagFiles); showFiles {
				files, err := config.Files(a.v)
				if err != nil {
					return err
				}
				for _, path := range files {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().Bool(FlagFiles, false, "List the merged config files instead")

	return cmd
}
