// Package values assembles the Helm values priority chain (spec.md §4.2):
// accumulated cluster_values_file contents -> accumulated global_values ->
// app values files -> app set_values, lowest to highest, and renders it
// into the `-f`/`--set` arguments `helm install|upgrade|template` expects.
package values

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/pkg/chartutil"
)

// HelmArgs is a resolved app's values chain, ready to append to
// `helm install`/`helm upgrade`/`helm template`.
type HelmArgs struct {
	ValuesFiles []string // -f flags, in priority order (lowest first)
	SetValues   []string // --set key=value, sorted for reproducibility
}

// Resolve builds the priority chain for one app: the accumulated
// cluster/global layers are coalesced into a single synthetic base values
// file under workDir, then the app's own `values` files are appended
// unmodified so Helm's own -f stacking applies them in order, and finally
// `set_values` is rendered into sorted `--set` flags (spec.md §8.1 testable
// property 6: deterministic --set argument order).
func Resolve(app config.ResolvedApp, workDir string) (*HelmArgs, error) {
	var baseLayers []map[string]interface{}
	for _, path := range app.Settings.ClusterValuesFiles {
		m, err := loadYAMLFile(path)
		if err != nil {
			return nil, err
		}
		baseLayers = append(baseLayers, m)
	}
	baseLayers = append(baseLayers, app.Settings.GlobalValuesLayers...)

	var files []string
	if len(baseLayers) > 0 {
		merged := chartutil.MergeLayers(baseLayers...)
		basePath, err := writeTempValues(workDir, app.Name, merged)
		if err != nil {
			return nil, err
		}
		files = append(files, basePath)
	}
	files = append(files, app.App.Values...)

	keys := make([]string, 0, len(app.App.SetValues))
	for k := range app.App.SetValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sets := make([]string, 0, len(keys))
	for _, k := range keys {
		sets = append(sets, fmt.Sprintf("%s=%s", k, app.App.SetValues[k]))
	}

	return &HelmArgs{ValuesFiles: files, SetValues: sets}, nil
}

// Args flattens a HelmArgs into the literal argv fragment for the Helm
// subprocess invocation.
func (h *HelmArgs) Args() []string {
	var out []string
	for _, f := range h.ValuesFiles {
		out = append(out, "-f", f)
	}
	for _, s := range h.SetValues {
		out = append(out, "--set", s)
	}
	return out
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot read values file "+path)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "cannot parse values file "+path)
	}
	return m, nil
}

func writeTempValues(workDir, appName string, merged map[string]interface{}) (string, error) {
	data, err := yaml.Marshal(merged)
	if err != nil {
		return "", errs.Wrap(errs.Configuration, err, "cannot marshal merged values for "+appName)
	}
	dir := filepath.Join(workDir, "build", appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Wrap(errs.Filesystem, err, "cannot create build directory for "+appName)
	}
	path := filepath.Join(dir, ".sbkube-base-values.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errs.Wrap(errs.Filesystem, err, "cannot write merged values file for "+appName)
	}
	return path, nil
}
