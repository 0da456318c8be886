package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/errs"
)

// rawDocument mirrors Document but leaves Phases as raw JSON so each phase
// value (a YAML string ref, or an inline mapping) can be dispatched by
// shape before being decoded strictly.
type rawDocument struct {
	APIVersion string                     `json:"apiVersion"`
	Metadata   map[string]string          `json:"metadata,omitempty"`
	Settings   Settings                   `json:"settings,omitempty"`
	Hooks      *CommandHooks              `json:"hooks,omitempty"`
	Apps       map[string]json.RawMessage `json:"apps,omitempty"`
	Phases     map[string]json.RawMessage `json:"phases,omitempty"`
}

// ParseUnified parses a single sbkube.yaml document's bytes. It does not
// resolve phase references to disk; callers walk the returned Document's
// Phases with Phase.Ref through the loader (see LoadWorkspace and ResolveTree).
func ParseUnified(sourcePath string, data []byte) (*Document, error) {
	var raw rawDocument
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "invalid sbkube.yaml").
			WithHint("check indentation and field names against the sbkube/v1 schema")
	}

	if raw.APIVersion != "" && raw.APIVersion != APIVersion {
		return nil, errs.New(errs.Configuration,
			"unsupported apiVersion "+raw.APIVersion+", expected "+APIVersion).
			WithHint("set apiVersion: " + APIVersion)
	}

	doc := &Document{
		APIVersion: APIVersion,
		Metadata:   raw.Metadata,
		Settings:   raw.Settings,
		Hooks:      raw.Hooks,
		Apps:       make(map[string]App, len(raw.Apps)),
		Phases:     make(map[string]Phase, len(raw.Phases)),
		SourcePath: sourcePath,
	}

	var aggregate *multierror.Error
	for name, body := range raw.Apps {
		app, err := decodeApp(body)
		if err != nil {
			aggregate = multierror.Append(aggregate, errors.Wrapf(err, "apps.%s", name))
			continue
		}
		doc.Apps[name] = *app
	}
	for name, body := range raw.Phases {
		phase, err := decodePhase(body)
		if err != nil {
			aggregate = multierror.Append(aggregate, errors.Wrapf(err, "phases.%s", name))
			continue
		}
		doc.Phases[name] = *phase
	}
	if err := aggregate.ErrorOrNil(); err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "invalid sbkube.yaml")
	}
	return doc, nil
}

// decodeApp dispatches on the "type" discriminator and strictly decodes the
// remaining fields into the shared App struct (spec.md §4.2 "strongest
// single guard against silent misconfiguration").
func decodeApp(body json.RawMessage) (*App, error) {
	var peek struct {
		Type AppType `json:"type"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return nil, errors.Wrap(err, "malformed app entry")
	}
	switch peek.Type {
	case AppHelm, AppYAML, AppKustomize, AppGit, AppHTTP, AppAction, AppExec, AppNoop, AppHook:
		// valid
	case "":
		return nil, errors.New("missing required field \"type\"")
	default:
		return nil, errors.Errorf("unknown app type %q", peek.Type)
	}

	var app App
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&app); err != nil {
		return nil, errors.Wrap(err, "invalid app definition")
	}
	return &app, nil
}

// decodePhase distinguishes a filesystem reference (a bare YAML string)
// from an inline sub-workspace (a mapping) by JSON shape.
func decodePhase(body json.RawMessage) (*Phase, error) {
	var ref string
	if err := json.Unmarshal(body, &ref); err == nil {
		return &Phase{Ref: ref}, nil
	}

	var raw rawDocument
	if err := strictUnmarshalRaw(body, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid inline phase")
	}
	inlineBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	inline, err := ParseUnified("", inlineBytes)
	if err != nil {
		return nil, err
	}
	return &Phase{Inline: inline}, nil
}

// strictUnmarshal converts YAML to JSON and decodes with unknown top-level
// fields rejected.
func strictUnmarshal(yamlData []byte, v interface{}) error {
	jsonData, err := yaml.YAMLToJSON(yamlData)
	if err != nil {
		return err
	}
	return strictUnmarshalRaw(jsonData, v)
}

func strictUnmarshalRaw(jsonData []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// LoadFile reads and parses a single sbkube.yaml from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot read "+path)
	}
	return ParseUnified(filepath.Clean(path), data)
}
