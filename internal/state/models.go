// Package state implements the State Store (spec.md §4.7): an embedded
// SQLite database recording every deployment and its descendants, guarded
// by a filesystem lock for write serialization, queried by the Rollback
// Engine, Status/History Reporter, and the cross-document dependency
// resolver (internal/depgraph.GroupLookup).
package state

import "time"

// DeploymentStatus is the terminal or in-flight status of a Deployment row.
type DeploymentStatus string

const (
	DeploymentInProgress     DeploymentStatus = "in_progress"
	DeploymentSuccess        DeploymentStatus = "success"
	DeploymentFailed         DeploymentStatus = "failed"
	DeploymentPartialFailure DeploymentStatus = "partially_failed"
	DeploymentRolledBack     DeploymentStatus = "rolled_back"
)

// AppStatus is the terminal or in-flight status of an AppDeployment row.
type AppStatus string

const (
	AppInProgress AppStatus = "in_progress"
	AppSuccess    AppStatus = "success"
	AppFailed     AppStatus = "failed"
	AppSkipped    AppStatus = "skipped"
)

// ResourceAction names how a DeployedResource row was produced (spec.md
// §3.2). Create/update/delete are the per-object reversals the Rollback
// Engine understands (spec.md §4.8); apply covers a whole-directory or
// kustomization apply where individual object history (create vs. update)
// isn't tracked; rollback is reserved for a future self-audit trail of the
// Rollback Engine's own reversals, not yet produced by any code path.
type ResourceAction string

const (
	ActionCreate   ResourceAction = "create"
	ActionUpdate   ResourceAction = "update"
	ActionDelete   ResourceAction = "delete"
	ActionApply    ResourceAction = "apply"
	ActionRollback ResourceAction = "rollback"
)

// Deployment is one command invocation's outcome: the root of the
// Deployment -> AppDeployment -> (DeployedResource | HelmRelease) tree
// (spec.md §4.7, schema-level invariant).
type Deployment struct {
	ID             string     `db:"id"`
	Cluster        string     `db:"cluster"`
	Namespace      string     `db:"namespace"`
	AppGroup       string     `db:"app_group"`
	Command        string     `db:"command"`
	Status         string     `db:"status"`
	StartedAt      time.Time  `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	ConfigSnapshot string     `db:"config_snapshot"`
	Metadata       string     `db:"metadata"`
}

// AppDeployment is one app's outcome within a Deployment.
type AppDeployment struct {
	ID           string     `db:"id"`
	DeploymentID string     `db:"deployment_id"`
	Cluster      string     `db:"cluster"`
	Namespace    string     `db:"namespace"`
	AppName      string     `db:"app_name"`
	AppGroup     string     `db:"app_group"`
	Status       string     `db:"status"`
	StartedAt    time.Time  `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	Error        string     `db:"error"`
}

// DeployedResource is one non-Helm Kubernetes object an AppDeployment
// created, updated, or deleted; PreviousState/CurrentState hold the
// serialized manifest needed to reverse the action (spec.md §4.8), and
// Checksum is a content hash of CurrentState so history/status can detect
// drift without re-diffing the full manifest (spec.md §3.2).
type DeployedResource struct {
	ID              string    `db:"id"`
	AppDeploymentID string    `db:"app_deployment_id"`
	APIVersion      string    `db:"api_version"`
	Kind            string    `db:"kind"`
	Name            string    `db:"name"`
	Namespace       string    `db:"namespace"`
	Action          string    `db:"action"`
	PreviousState   string    `db:"previous_state"`
	CurrentState    string    `db:"current_state"`
	Checksum        string    `db:"checksum"`
	CreatedAt       time.Time `db:"created_at"`
}

// HelmRelease is the Helm-specific leaf of an AppDeployment. Values holds
// the fully merged values map (spec.md §3.2) JSON-encoded, so `sbkube
// history`/`rollback` can inspect exactly what was installed without
// re-resolving the values chain against a possibly-since-edited workspace.
type HelmRelease struct {
	ID              string    `db:"id"`
	AppDeploymentID string    `db:"app_deployment_id"`
	ReleaseName     string    `db:"release_name"`
	Chart           string    `db:"chart"`
	ChartVersion    string    `db:"chart_version"`
	Revision        int       `db:"revision"`
	Namespace       string    `db:"namespace"`
	Values          string    `db:"values"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
}
