package config

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/sbkube/sbkube/internal/errs"
)

// EffectiveSettings is the result of shallow-merging a phase's own Settings
// with everything inherited from its ancestors (spec.md §4.2). Scalars and
// repo maps are merged node-by-node as the walk descends; cluster_values_file
// and global_values are accumulated in root-to-leaf order so the values
// merge step (internal/values) can apply them at the bottom priority tier,
// oldest ancestor first.
type EffectiveSettings struct {
	Kubeconfig         string
	KubeconfigContext  string
	Cluster            string
	Namespace          string
	HelmRepos          map[string]string
	OCIRegistries      map[string]OCIRegistry
	GitRepos           map[string]GitRepoRef
	AppDirs            []string
	ClusterValuesFiles []string                 // root-to-leaf
	GlobalValuesLayers []map[string]interface{} // root-to-leaf
}

func mergeSettings(parent EffectiveSettings, child Settings) EffectiveSettings {
	out := EffectiveSettings{
		Kubeconfig:         parent.Kubeconfig,
		KubeconfigContext:  parent.KubeconfigContext,
		Cluster:            parent.Cluster,
		Namespace:          parent.Namespace,
		HelmRepos:          unionStrings(parent.HelmRepos, child.HelmRepos),
		OCIRegistries:      unionOCI(parent.OCIRegistries, child.OCIRegistries),
		GitRepos:           unionGit(parent.GitRepos, child.GitRepos),
		AppDirs:            parent.AppDirs,
		ClusterValuesFiles: append([]string(nil), parent.ClusterValuesFiles...),
		GlobalValuesLayers: append([]map[string]interface{}(nil), parent.GlobalValuesLayers...),
	}
	if child.Kubeconfig != "" {
		out.Kubeconfig = child.Kubeconfig
	}
	if child.KubeconfigContext != "" {
		out.KubeconfigContext = child.KubeconfigContext
	}
	if child.Cluster != "" {
		out.Cluster = child.Cluster
	}
	if child.Namespace != "" {
		out.Namespace = child.Namespace
	}
	if len(child.AppDirs) > 0 {
		out.AppDirs = child.AppDirs
	}
	if child.ClusterValuesFile != "" {
		out.ClusterValuesFiles = append(out.ClusterValuesFiles, child.ClusterValuesFile)
	}
	if len(child.GlobalValues) > 0 {
		out.GlobalValuesLayers = append(out.GlobalValuesLayers, child.GlobalValues)
	}
	return out
}

func unionStrings(parent, child map[string]string) map[string]string {
	out := make(map[string]string, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

func unionOCI(parent, child map[string]OCIRegistry) map[string]OCIRegistry {
	out := make(map[string]OCIRegistry, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

func unionGit(parent, child map[string]GitRepoRef) map[string]GitRepoRef {
	out := make(map[string]GitRepoRef, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

// ResolvedApp is one application flattened out of the phase tree, paired
// with the settings in effect at its document and the directory identifying
// its app_group for cross-document `deps` (spec.md §3.2 GLOSSARY "App group").
type ResolvedApp struct {
	Name      string
	PhasePath string // slash-joined phase names from the workspace root, "" at root
	AppGroup  string // directory containing the owning sbkube.yaml
	App       App
	Settings  EffectiveSettings
}

// ResolvedWorkspace is every enabled and disabled application across the
// whole phase tree, with phase-inherited settings already applied.
type ResolvedWorkspace struct {
	Apps []ResolvedApp
}

// PhaseLoader resolves a Phase.Ref (a filesystem path, relative to fromDir)
// to the Document it names and that document's own directory (used to
// resolve further nested refs).
type PhaseLoader func(ref string, fromDir string) (doc *Document, dir string, err error)

// ResolveTree walks root and every phase it (transitively) references,
// shallow-merging settings top-down and flattening every app into a
// ResolvedWorkspace. A phase that resolves back to a document already on
// the current path is a configuration error (a phase pointing to its
// ancestor), per spec.md §9.
func ResolveTree(root *Document, rootDir string, load PhaseLoader) (*ResolvedWorkspace, error) {
	ws := &ResolvedWorkspace{}
	visited := map[string]bool{}

	// identity is the ancestor-cycle key: the absolute directory a
	// document was loaded from. Inline phases share their
	// parent's directory by construction (they have no file of their own),
	// so they pass identity == "" and are exempt from the check; only a
	// Phase.Ref resolving back to a directory already on the current path
	// is a genuine ancestor cycle.
	var walk func(doc *Document, dir string, identity string, phasePath string, parent EffectiveSettings) error
	walk = func(doc *Document, dir string, identity string, phasePath string, parent EffectiveSettings) error {
		if identity != "" {
			if visited[identity] {
				return errs.New(errs.Configuration,
					"circular phase reference: "+identity+" is already an ancestor of this workspace").
					WithHint("remove the phase that points back at its own ancestor")
			}
			visited[identity] = true
			defer delete(visited, identity)
		}

		effective := mergeSettings(parent, doc.Settings)

		absDir, err := filepath.Abs(dir)
		if err != nil {
			return errs.Wrap(errs.Filesystem, err, "cannot resolve phase directory")
		}

		for name, app := range doc.Apps {
			ws.Apps = append(ws.Apps, ResolvedApp{
				Name:      name,
				PhasePath: phasePath,
				AppGroup:  absDir,
				App:       app,
				Settings:  effective,
			})
		}

		for name, phase := range doc.Phases {
			childPath := name
			if phasePath != "" {
				childPath = phasePath + "/" + name
			}
			if phase.Inline != nil {
				if err := walk(phase.Inline, dir, "", childPath, effective); err != nil {
					return err
				}
				continue
			}
			childDoc, childDir, err := load(phase.Ref, absDir)
			if err != nil {
				return errors.Wrapf(err, "phases.%s", name)
			}
			absChildDir, err := filepath.Abs(childDir)
			if err != nil {
				return errs.Wrap(errs.Filesystem, err, "cannot resolve phase directory")
			}
			if err := walk(childDoc, childDir, absChildDir, childPath, effective); err != nil {
				return err
			}
		}
		return nil
	}

	rootAbs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot resolve workspace root")
	}
	if err := walk(root, rootDir, rootAbs, "", EffectiveSettings{}); err != nil {
		return nil, err
	}
	return ws, nil
}
