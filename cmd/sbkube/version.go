package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/version"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newVersionCmd(settings *Settings) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print sbkube's build version",
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version.GetVersion())
				return nil
			}
			info := version.Get()
			switch settings.format() {
			case "json":
				data, err := yaml.YAMLToJSON(mustYAML(info))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			default:
				fmt.Fprintf(out, "sbkube %s (go %s, commit %s)\n", info.Version, info.GoVersion, info.GitCommit)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "print just the version number")
	return cmd
}

func mustYAML(v interface{}) []byte {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
