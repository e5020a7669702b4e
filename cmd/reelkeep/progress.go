package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelkeep/internal/api"
	"reelkeep/internal/tasks"
)

// progressPrinter mirrors task progress onto the terminal while still
// feeding the runner's status.
type progressPrinter struct {
	next tasks.Reporter
	out  io.Writer
	last string
}

func (p *progressPrinter) Report(percent int, message string) {
	p.next.Report(percent, message)
	line := fmt.Sprintf("[%3d%%] %s", percent, message)
	if percent < 0 {
		line = "[fail] " + message
	}
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}

func withProgress(fn tasks.Func, out io.Writer) tasks.Func {
	return func(ctx context.Context, rep tasks.Reporter) error {
		return fn(ctx, &progressPrinter{next: rep, out: out})
	}
}

// runTask runs fn in the foreground; Ctrl-C cancels it cleanly.
func runTask(cmd *cobra.Command, svc *api.Service, name string, fn tasks.Func) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := svc.Runner().Run(ctx, name, withProgress(fn, cmd.ErrOrStderr()))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tasks.ErrBusy):
		return fmt.Errorf("%s not started: %w", name, err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(cmd.ErrOrStderr(), "%s stopped\n", name)
		return err
	default:
		return fmt.Errorf("%s failed: %w", name, err)
	}
}
