package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/errs"
)

// legacyConfig mirrors the deprecated config.yaml: a list of apps (rather
// than a name-keyed map) whose type-specific fields sit under a nested
// "specs" object instead of being flattened onto the app itself.
type legacyConfig struct {
	Namespace string            `json:"namespace,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Apps      []legacyApp       `json:"apps"`
}

type legacyApp struct {
	Name      string                 `json:"name"`
	Type      AppType                `json:"type"`
	Enabled   *bool                  `json:"enabled,omitempty"`
	Namespace string                 `json:"namespace,omitempty"`
	DependsOn []string               `json:"depends_on,omitempty"`
	Deps      []string               `json:"deps,omitempty"`
	Specs     map[string]interface{} `json:"specs"`
}

// legacySources mirrors the deprecated sources.yaml.
type legacySources struct {
	HelmRepos     map[string]string      `json:"helm_repos,omitempty"`
	OCIRegistries map[string]OCIRegistry `json:"oci_registries,omitempty"`
	GitRepos      map[string]GitRepoRef  `json:"git_repos,omitempty"`
}

// LoadLegacy reads the deprecated two-file split and normalizes it into the
// same Document shape ParseUnified produces, so no downstream code ever
// branches on config format (spec.md §3.1 "Legacy Config").
func LoadLegacy(configPath, sourcesPath string) (*Document, error) {
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot read "+configPath)
	}
	var lc legacyConfig
	if err := yaml.Unmarshal(configBytes, &lc); err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "invalid config.yaml")
	}

	var ls legacySources
	if sourcesPath != "" {
		sourcesBytes, err := os.ReadFile(sourcesPath)
		if err != nil {
			return nil, errs.Wrap(errs.Filesystem, err, "cannot read "+sourcesPath)
		}
		if err := yaml.Unmarshal(sourcesBytes, &ls); err != nil {
			return nil, errs.Wrap(errs.Configuration, err, "invalid sources.yaml")
		}
	}

	doc := &Document{
		APIVersion: APIVersion,
		Metadata:   lc.Metadata,
		Settings: Settings{
			Namespace:     lc.Namespace,
			HelmRepos:     ls.HelmRepos,
			OCIRegistries: ls.OCIRegistries,
			GitRepos:      ls.GitRepos,
		},
		Apps:       make(map[string]App, len(lc.Apps)),
		SourcePath: filepath.Clean(configPath),
	}

	for _, la := range lc.Apps {
		if la.Name == "" {
			return nil, errs.New(errs.Configuration, "legacy config.yaml: every app entry needs a \"name\"")
		}
		merged := map[string]interface{}{
			"type":       la.Type,
			"enabled":    la.Enabled,
			"namespace":  la.Namespace,
			"depends_on": la.DependsOn,
			"deps":       la.Deps,
		}
		for k, v := range la.Specs {
			merged[k] = v
		}
		body, err := json.Marshal(merged)
		if err != nil {
			return nil, errors.Wrapf(err, "apps.%s", la.Name)
		}
		app, err := decodeApp(body)
		if err != nil {
			return nil, errs.Wrap(errs.Configuration, errors.Wrapf(err, "apps.%s", la.Name),
				"invalid legacy config.yaml").
				WithHint("nested \"specs\" fields must match the target app type's schema")
		}
		doc.Apps[la.Name] = *app
	}
	return doc, nil
}
