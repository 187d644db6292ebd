// Package shutdown ties a blocking run function to SIGINT and SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ErrTimeout is returned when the run function does not return within the
// shutdown timeout after a signal.
var ErrTimeout = errors.New("shutdown timeout exceeded")

// notifyContext is a variable to allow testing.
var notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Shutdowner defines the interface for components that can be gracefully shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// All returns a shutdown func that shuts down every component in order and
// joins their errors. Nil components are skipped.
func All(components ...Shutdowner) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var errs []error
		for _, c := range components {
			if c == nil {
				continue
			}
			if err := c.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// RunWithGracefulShutdown calls run and blocks until it returns.
//
// On SIGINT or SIGTERM the context passed to run is canceled and shutdown is
// called. The run function's own error is returned once it finishes, so a
// canceled command surfaces as whatever run reports for it. If run has not
// returned within timeout of the signal, ErrTimeout is returned instead.
func RunWithGracefulShutdown(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	run func(ctx context.Context) error,
	shutdown func(ctx context.Context) error,
) error {
	sigCtx, stop := notifyContext(ctx)
	defer stop()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- run(runCtx)
	}()

	select {
	case err := <-runDone:
		return err

	case <-sigCtx.Done():
		if ctx.Err() == nil {
			logger.Info("received signal, initiating shutdown")
		}
		runCancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if shutdown != nil {
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
			}
		}

		select {
		case err := <-runDone:
			logger.Debug("shutdown complete")
			return err
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded", "timeout", timeout)
			return ErrTimeout
		}
	}
}
