package report

import (
	"fmt"
	"io"

	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/pkg/cli/sanitize"
)

// WriteResourceDetail lists an AppDeployment's underlying resources, with
// any Secret payloads redacted before they ever reach a terminal or file.
func WriteResourceDetail(w io.Writer, store *state.Store, appDeploymentID string) error {
	if release, err := store.HelmReleaseFor(appDeploymentID); err != nil {
		return err
	} else if release != nil {
		fmt.Fprintf(w, "helm release %s (chart %s@%s, revision %d)\n", release.ReleaseName, release.Chart, release.ChartVersion, release.Revision)
		return nil
	}

	resources, err := store.DeployedResourcesFor(appDeploymentID)
	if err != nil {
		return err
	}
	for _, r := range resources {
		fmt.Fprintf(w, "%s/%s %s (%s) in %s\n", r.APIVersion, r.Kind, r.Name, r.Action, r.Namespace)
		if r.CurrentState != "" {
			fmt.Fprintln(w, sanitize.HideManifestSecrets(r.CurrentState))
		}
	}
	return nil
}
