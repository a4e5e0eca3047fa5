package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/contriboss/cmakext/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(os.Stderr)
	root := newRootCommand(a)

	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(a.fail(err))
	}
}

// fail logs err and returns the process exit code for it.
func (a *app) fail(err error) int {
	if errors.Is(err, context.Canceled) {
		a.logger.Warn("command interrupted", "error", err)
		return 130
	}
	a.logger.Error("command failed", "error", err)
	return 1
}

func newApp(w *os.File) *app {
	a := &app{stderr: w}
	a.level.Set(slog.LevelInfo)
	a.logger = logging.New(logging.FormatText, w, &a.level)
	return a
}
