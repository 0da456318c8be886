// Command sbkube drives the prepare/build/template/deploy pipeline for a
// declarative Kubernetes application workspace (spec.md §6.1). The CLI
// layer here only assembles cobra commands and prints results; every
// behavioral rule lives in the internal packages it wires together.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sbkube/sbkube/internal/errs"
)

func main() {
	os.Exit(run())
}

// exitCoder lets a command (validate's warning path) override the default
// exit-code-1-on-any-error rule without every RunE plumbing a return code
// through cobra itself.
type exitCoder interface {
	error
	ExitCode() int
}

// run wires a cancellable context so an interrupt leaves in-flight
// subprocesses to terminate cleanly before exiting 130 (spec.md §5
// "Cancellation").
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}

	if ec, ok := err.(exitCoder); ok {
		fmt.Fprintln(os.Stderr, ec.Error())
		return ec.ExitCode()
	}

	if classified, ok := errs.As(err); ok {
		fmt.Fprintln(os.Stderr, classified.Summary())
		if classified.Hint() != "" {
			fmt.Fprintln(os.Stderr, "hint:", classified.Hint())
		}
		if verbose, _ := cmd.PersistentFlags().GetBool("verbose"); verbose && classified.Cause() != nil {
			fmt.Fprintln(os.Stderr, classified.Cause().Error())
		}
		return errs.ExitCode(err)
	}

	fmt.Fprintln(os.Stderr, err.Error())
	return 1
}
