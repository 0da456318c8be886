package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/source"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

const initSkeleton = `apiVersion: sbkube/v1
settings:
  cluster: ""
  namespace: default
  helm_repos: {}
  git_repos: {}
apps: {}
`

// newInitCmd scaffolds a new workspace directory containing an empty
// sbkube.yaml (spec.md §6.1 "init (scaffold a new workspace)"), grounded on
// the teacher's `helm create` (writes a directory of starter files, refuses
// to overwrite an existing one without confirmation).
func newInitCmd(settings *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [DIRECTORY]",
		Short: "Scaffold a new sbkube.yaml workspace",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errs.Wrap(errs.Filesystem, err, "cannot create workspace directory "+dir)
			}

			path := filepath.Join(dir, source.ConfigFileName)
			if _, err := os.Stat(path); err == nil {
				return errs.New(errs.Configuration, path+" already exists").
					WithHint("remove it first, or run init in an empty directory")
			}
			if err := os.WriteFile(path, []byte(initSkeleton), 0o644); err != nil {
				return errs.Wrap(errs.Filesystem, err, "cannot write "+path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	return cmd
}
