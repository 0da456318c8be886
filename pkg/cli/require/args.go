// Package require provides positional-argument validators with error
// messages naming the offending command, used by every sbkube command that
// accepts a single optional TARGET or a fixed argument count.
package require

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NoArgs returns an error if any arguments are included.
func NoArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%q accepts no arguments", cmd.CommandPath())
	}
	return nil
}

// MaximumNArgs returns an error if more than N arguments are included.
func MaximumNArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return fmt.Errorf("%q accepts at most %d argument(s)", cmd.CommandPath(), n)
		}
		return nil
	}
}

// MinimumNArgs returns an error if fewer than N arguments are included.
func MinimumNArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%q requires at least %d argument(s)", cmd.CommandPath(), n)
		}
		return nil
	}
}

// ExactArgs returns an error if there are not exactly N arguments.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%q requires %d argument(s)", cmd.CommandPath(), n)
		}
		return nil
	}
}
