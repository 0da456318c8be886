// Package config implements the unified and legacy SBKube configuration
// formats: parsing, strict schema validation, phase-tree settings
// inheritance, and normalization into the in-memory application graph the
// rest of the pipeline consumes (spec.md §3.1, §4.2).
package config

// APIVersion is the only unified-config apiVersion this release understands.
const APIVersion = "sbkube/v1"

// AppType enumerates the nine application variants (spec.md §3.1).
type AppType string

const (
	AppHelm      AppType = "helm"
	AppYAML      AppType = "yaml"
	AppKustomize AppType = "kustomize"
	AppGit       AppType = "git"
	AppHTTP      AppType = "http"
	AppAction    AppType = "action"
	AppExec      AppType = "exec"
	AppNoop      AppType = "noop"
	AppHook      AppType = "hook"
)

// Document is a single sbkube.yaml (unified config) or the normalized form
// of a legacy config.yaml+sources.yaml pair. A workspace is a tree of
// Documents linked through Phases.
type Document struct {
	APIVersion string            `json:"apiVersion"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Settings   Settings          `json:"settings,omitempty"`
	Hooks      *CommandHooks     `json:"hooks,omitempty"`
	Apps       map[string]App    `json:"apps,omitempty"`
	Phases     map[string]Phase  `json:"phases,omitempty"`

	// SourcePath is the cleaned path this Document was loaded from ("" for
	// an inline phase). Not part of the schema.
	SourcePath string `json:"-"`
}

// OCIRegistry is a settings.oci_registries entry.
type OCIRegistry struct {
	Registry string `json:"registry"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// GitRepoRef is a settings.git_repos entry.
type GitRepoRef struct {
	URL string `json:"url"`
	Ref string `json:"ref,omitempty"`
}

// Settings holds cluster coordinates, registered external sources, and
// cluster-wide value overlays. Settings flow top-down through the phase
// tree and are shallow-merged at each level (spec.md §4.2).
type Settings struct {
	Kubeconfig        string                 `json:"kubeconfig,omitempty"`
	KubeconfigContext string                 `json:"kubeconfig_context,omitempty"`
	Cluster           string                 `json:"cluster,omitempty"`
	Namespace         string                 `json:"namespace,omitempty"`
	HelmRepos         map[string]string      `json:"helm_repos,omitempty"`
	OCIRegistries     map[string]OCIRegistry `json:"oci_registries,omitempty"`
	GitRepos          map[string]GitRepoRef  `json:"git_repos,omitempty"`
	ClusterValuesFile string                 `json:"cluster_values_file,omitempty"`
	GlobalValues      map[string]interface{} `json:"global_values,omitempty"`
	AppDirs           []string               `json:"app_dirs,omitempty"`
}

// Phase is a node in the recursive workspace tree: either an inline
// sub-workspace or a filesystem reference to another sbkube.yaml.
type Phase struct {
	Inline *Document `json:"-"`
	Ref    string    `json:"-"`
}

// HookTaskType enumerates the three hook task kinds (spec.md §4.5).
type HookTaskType string

const (
	TaskCommand   HookTaskType = "command"
	TaskManifests HookTaskType = "manifests"
	TaskInline    HookTaskType = "inline"
)

// OnFailure is the policy a hook task follows when it fails.
type OnFailure string

const (
	OnFailureStop     OnFailure = "stop"
	OnFailureContinue OnFailure = "continue"
	OnFailureWarn     OnFailure = "warn"
	OnFailureRollback OnFailure = "rollback"
)

// ValidationType is a post-task readiness check.
type ValidationType string

const (
	ValidationResourceReady  ValidationType = "resource_ready"
	ValidationCommandExit0   ValidationType = "command_exit_zero"
	ValidationResourceExists ValidationType = "resource_exists"
)

// Validation is a hook task's post-execution check.
type Validation struct {
	Type     ValidationType `json:"type"`
	Resource string         `json:"resource,omitempty"`
	Timeout  string         `json:"timeout,omitempty"`
}

// HookTask is one typed unit of work within a hook list (spec.md §4.5).
type HookTask struct {
	Name       string       `json:"name,omitempty"`
	Type       HookTaskType `json:"type"`
	DependsOn  []string     `json:"depends_on,omitempty"`
	OnFailure  OnFailure    `json:"on_failure,omitempty"`
	Validation *Validation  `json:"validation,omitempty"`

	// command
	Commands   []string `json:"commands,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`

	// manifests
	Files []string `json:"files,omitempty"`

	// inline
	Content string `json:"content,omitempty"`
}

// EffectiveOnFailure defaults an empty on_failure to "stop" (spec.md §4.5).
func (t HookTask) EffectiveOnFailure() OnFailure {
	if t.OnFailure == "" {
		return OnFailureStop
	}
	return t.OnFailure
}

// HookList is the ordered (but DAG-walked, not strictly linear) set of tasks
// or shell lines for one lifecycle point.
type HookList struct {
	Tasks []HookTask `json:"tasks,omitempty"`
}

// CommandHooks are the command-level (root document) hook lifecycle points.
type CommandHooks struct {
	PrePrepare      *HookList `json:"pre_prepare,omitempty"`
	PostPrepare     *HookList `json:"post_prepare,omitempty"`
	OnPrepareFail   *HookList `json:"on_prepare_failure,omitempty"`
	PreBuild        *HookList `json:"pre_build,omitempty"`
	PostBuild       *HookList `json:"post_build,omitempty"`
	OnBuildFail     *HookList `json:"on_build_failure,omitempty"`
	PreDeploy       *HookList `json:"pre_deploy,omitempty"`
	PostDeploy      *HookList `json:"post_deploy,omitempty"`
	OnDeployFail    *HookList `json:"on_deploy_failure,omitempty"`
	PreDeployTasks  *HookList `json:"pre_deploy_tasks,omitempty"`
	PostDeployTasks *HookList `json:"post_deploy_tasks,omitempty"`
}

// AppHooks are the app-level hook lifecycle points (subset: deploy only
// carries typed tasks at app scope too, mirroring CommandHooks).
type AppHooks = CommandHooks

// Action is one step of an `action`-type app.
type Action struct {
	Type string `json:"type"` // apply|create|delete
	Path string `json:"path"`
}

// App is the discriminated-union application definition (spec.md §3.1).
// One struct carries the fields of every type; strict decoding rejects
// only field names that no type defines, and validateAppFields rejects
// some fields of other types (see its comment for which).
type App struct {
	Type AppType `json:"type"`

	// common
	Enabled     *bool             `json:"enabled,omitempty"`
	Namespace   string            `json:"namespace,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	Deps        []string          `json:"deps,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Hooks       *AppHooks         `json:"hooks,omitempty"`

	// helm
	Chart           string            `json:"chart,omitempty"`
	Version         string            `json:"version,omitempty"`
	Values          []string          `json:"values,omitempty"`
	Overrides       []string          `json:"overrides,omitempty"`
	Removes         []string          `json:"removes,omitempty"`
	SetValues       map[string]string `json:"set_values,omitempty"`
	ReleaseName     string            `json:"release_name,omitempty"`
	CreateNamespace bool              `json:"create_namespace,omitempty"`
	Wait            bool              `json:"wait,omitempty"`
	Timeout         string            `json:"timeout,omitempty"`
	Atomic          bool              `json:"atomic,omitempty"`

	// yaml
	Files []string `json:"files,omitempty"`

	// kustomize
	Path string `json:"path,omitempty"`

	// git
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Ref    string `json:"ref,omitempty"`

	// http
	URL     string            `json:"url,omitempty"`
	Dest    string            `json:"dest,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// action
	Actions []Action `json:"actions,omitempty"`

	// exec
	Commands []string `json:"commands,omitempty"`

	// hook
	Tasks []HookTask `json:"tasks,omitempty"`
}

// IsEnabled reports whether the app should participate in any stage; it
// defaults to true (spec.md §3.1).
func (a App) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// EffectiveReleaseName is the Helm release name SBKube standardizes on: the
// app name, never namespace-qualified (spec.md §9, design decision D1).
func (a App) EffectiveReleaseName(appName string) string {
	if a.ReleaseName != "" {
		return a.ReleaseName
	}
	return appName
}
