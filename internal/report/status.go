// Package report renders read-only state-store queries for the status and
// history commands in the human/json/yaml/llm formats spec.md §6.1
// requires of every command's --format flag.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/state"
)

// Format is one of the four output renderings spec.md §6.1 names.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatLLM   Format = "llm"
)

// DeploymentView is one Deployment plus its AppDeployments, flattened for
// rendering (the status/history commands never show the deeper
// DeployedResource/HelmRelease rows by default).
type DeploymentView struct {
	Deployment state.Deployment      `json:"deployment"`
	Apps       []state.AppDeployment `json:"apps"`
}

// WriteDeployments renders a list of deployments in the requested format.
func WriteDeployments(w io.Writer, views []DeploymentView, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, views)
	case FormatYAML:
		return writeYAML(w, views)
	case FormatLLM:
		return writeLLM(w, views)
	default:
		return writeHuman(w, views)
	}
}

func writeJSON(w io.Writer, views []DeploymentView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func writeYAML(w io.Writer, views []DeploymentView) error {
	out, err := yaml.Marshal(views)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// writeHuman renders a uitable-aligned table, matching the teacher's
// "gosuri/uitable" usage for helm's own `helm list`/`helm history` output.
func writeHuman(w io.Writer, views []DeploymentView) error {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("DEPLOYMENT", "CLUSTER", "NAMESPACE", "APP GROUP", "STATUS", "STARTED", "APPS")
	for _, v := range views {
		table.AddRow(
			v.Deployment.ID,
			v.Deployment.Cluster,
			v.Deployment.Namespace,
			v.Deployment.AppGroup,
			v.Deployment.Status,
			v.Deployment.StartedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", len(v.Apps)),
		)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

// writeLLM renders a terser, prose-adjacent summary intended for piping
// into an agent prompt rather than a terminal: one line per deployment,
// app statuses inlined.
func writeLLM(w io.Writer, views []DeploymentView) error {
	for _, v := range views {
		fmt.Fprintf(w, "deployment %s (%s/%s, group=%s): %s\n",
			v.Deployment.ID, v.Deployment.Cluster, v.Deployment.Namespace, v.Deployment.AppGroup, v.Deployment.Status)
		for _, a := range v.Apps {
			fmt.Fprintf(w, "  - %s: %s\n", a.AppName, a.Status)
		}
	}
	return nil
}
