package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sbkube/sbkube/internal/depgraph"
	"github.com/sbkube/sbkube/internal/errs"
)

// dbHandle wraps *sqlx.DB so migrate.go can reach the raw *sql.DB without
// exporting it from Store.
type dbHandle struct {
	*sqlx.DB
}

// Store is the embedded relational state store: single-file SQLite
// database plus a filesystem lock serializing writes across processes
// (spec.md §4.7 "Concurrency" — a single process is assumed; concurrent
// invocations against the same store are rejected, read-only queries may
// run concurrently with a write-holder).
type Store struct {
	db   *dbHandle
	lock *flock.Flock
	path string
}

// DefaultPath is ~/.sbkube/deployments.db (spec.md §6.2).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.Filesystem, err, "cannot resolve home directory")
	}
	return filepath.Join(home, ".sbkube", "deployments.db"), nil
}

// Open creates (if needed) and migrates the database at path, and prepares
// (but does not yet acquire) the sibling ".lock" file used to serialize
// writes.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot create state directory")
	}

	sqlDB, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errs.Wrap(errs.State, err, "cannot open state store at "+path)
	}
	handle := &dbHandle{DB: sqlDB}
	if err := runMigrations(handle); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{
		db:   handle,
		lock: flock.New(path + ".lock"),
		path: path,
	}, nil
}

// Close releases the database handle. The write lock is taken and released
// inside each write call, so Close has no lock to release.
func (s *Store) Close() error {
	return s.db.Close()
}

// lockForWrite makes one non-blocking attempt at the filesystem lock and
// returns a State-kind error (its hint names the lock file) when another
// process holds it, per spec.md §7 ("database
// locked by another process; no automatic recovery").
func (s *Store) lockForWrite() (func(), error) {
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.State, err, "cannot acquire state store lock")
	}
	if !locked {
		return nil, errs.New(errs.State, "state store is locked by another sbkube process").
			WithHint("wait for the other invocation to finish, or remove " + s.lock.Path() + " if it is stale")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// BeginDeployment inserts a new in_progress Deployment row and returns its
// id. Called at the very start of an apply/deploy invocation so a crash
// leaves a readable, if incomplete, record (spec.md §4.7, §9 "State store
// as sole history").
func (s *Store) BeginDeployment(d Deployment) (string, error) {
	unlock, err := s.lockForWrite()
	if err != nil {
		return "", err
	}
	defer unlock()

	d.Status = string(DeploymentInProgress)
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	_, err = s.db.NamedExec(`
		INSERT INTO deployments (id, cluster, namespace, app_group, command, status, started_at, config_snapshot, metadata)
		VALUES (:id, :cluster, :namespace, :app_group, :command, :status, :started_at, :config_snapshot, :metadata)
	`, d)
	if err != nil {
		return "", errs.Wrap(errs.State, err, "cannot record deployment start")
	}
	return d.ID, nil
}

// FinishDeployment sets the terminal status and completion time.
func (s *Store) FinishDeployment(id string, status DeploymentStatus) error {
	unlock, err := s.lockForWrite()
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now()
	_, err = s.db.Exec(`UPDATE deployments SET status = ?, completed_at = ? WHERE id = ?`, string(status), now, id)
	if err != nil {
		return errs.Wrap(errs.State, err, "cannot finalize deployment "+id)
	}
	return nil
}

// BeginAppDeployment inserts an in_progress AppDeployment row.
func (s *Store) BeginAppDeployment(a AppDeployment) (string, error) {
	unlock, err := s.lockForWrite()
	if err != nil {
		return "", err
	}
	defer unlock()

	a.Status = string(AppInProgress)
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	_, err = s.db.NamedExec(`
		INSERT INTO app_deployments (id, deployment_id, cluster, namespace, app_name, app_group, status, started_at, error)
		VALUES (:id, :deployment_id, :cluster, :namespace, :app_name, :app_group, :status, :started_at, :error)
	`, a)
	if err != nil {
		return "", errs.Wrap(errs.State, err, "cannot record app deployment start for "+a.AppName)
	}
	return a.ID, nil
}

// FinishAppDeployment sets the terminal status, completion time, and error
// text (empty on success) for an AppDeployment row.
func (s *Store) FinishAppDeployment(id string, status AppStatus, errText string) error {
	unlock, err := s.lockForWrite()
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now()
	_, err = s.db.Exec(`UPDATE app_deployments SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), now, errText, id)
	if err != nil {
		return errs.Wrap(errs.State, err, "cannot finalize app deployment "+id)
	}
	return nil
}

// RecordDeployedResource inserts a DeployedResource row; called once per
// manifest/action/hook-manifest apply so the Rollback Engine can reverse it.
func (s *Store) RecordDeployedResource(r DeployedResource) error {
	unlock, err := s.lockForWrite()
	if err != nil {
		return err
	}
	defer unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err = s.db.NamedExec(`
		INSERT INTO deployed_resources (id, app_deployment_id, api_version, kind, name, namespace, action, previous_state, current_state, checksum, created_at)
		VALUES (:id, :app_deployment_id, :api_version, :kind, :name, :namespace, :action, :previous_state, :current_state, :checksum, :created_at)
	`, r)
	if err != nil {
		return errs.Wrap(errs.State, err, "cannot record deployed resource "+r.Kind+"/"+r.Name)
	}
	return nil
}

// RecordHelmRelease inserts a HelmRelease row.
func (s *Store) RecordHelmRelease(r HelmRelease) error {
	unlock, err := s.lockForWrite()
	if err != nil {
		return err
	}
	defer unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = "deployed"
	}
	_, err = s.db.NamedExec(`
		INSERT INTO helm_releases (id, app_deployment_id, release_name, chart, chart_version, revision, namespace, "values", status, created_at)
		VALUES (:id, :app_deployment_id, :release_name, :chart, :chart_version, :revision, :namespace, :values, :status, :created_at)
	`, r)
	if err != nil {
		return errs.Wrap(errs.State, err, "cannot record helm release "+r.ReleaseName)
	}
	return nil
}

// History returns Deployments matching the given filters, newest first,
// bounded by limit (0 means unlimited). Read-only; does not take the write
// lock (spec.md §4.7 "Read-only queries... may run concurrently").
func (s *Store) History(cluster, namespace, appName string, limit int) ([]Deployment, error) {
	query := `SELECT DISTINCT d.* FROM deployments d`
	var args []interface{}
	var where []string

	if appName != "" {
		query += ` JOIN app_deployments a ON a.deployment_id = d.id`
		where = append(where, "a.app_name = ?")
		args = append(args, appName)
	}
	if cluster != "" {
		where = append(where, "d.cluster = ?")
		args = append(args, cluster)
	}
	if namespace != "" {
		where = append(where, "d.namespace = ?")
		args = append(args, namespace)
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY d.started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var out []Deployment
	if err := s.db.Select(&out, query, args...); err != nil {
		return nil, errs.Wrap(errs.State, err, "history query failed")
	}
	return out, nil
}

// AppDeploymentsFor returns every AppDeployment belonging to deploymentID.
func (s *Store) AppDeploymentsFor(deploymentID string) ([]AppDeployment, error) {
	var out []AppDeployment
	err := s.db.Select(&out, `SELECT * FROM app_deployments WHERE deployment_id = ? ORDER BY started_at`, deploymentID)
	if err != nil {
		return nil, errs.Wrap(errs.State, err, "cannot load app deployments for "+deploymentID)
	}
	return out, nil
}

// DeployedResourcesFor returns every DeployedResource belonging to an
// AppDeployment, in application order (oldest first — the order the
// Rollback Engine must reverse).
func (s *Store) DeployedResourcesFor(appDeploymentID string) ([]DeployedResource, error) {
	var out []DeployedResource
	err := s.db.Select(&out, `SELECT * FROM deployed_resources WHERE app_deployment_id = ? ORDER BY created_at`, appDeploymentID)
	if err != nil {
		return nil, errs.Wrap(errs.State, err, "cannot load deployed resources for "+appDeploymentID)
	}
	return out, nil
}

// HelmReleaseFor returns the HelmRelease row for an AppDeployment, if any.
func (s *Store) HelmReleaseFor(appDeploymentID string) (*HelmRelease, error) {
	var r HelmRelease
	err := s.db.Get(&r, `SELECT * FROM helm_releases WHERE app_deployment_id = ? LIMIT 1`, appDeploymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.State, err, "cannot load helm release for "+appDeploymentID)
	}
	return &r, nil
}

// LatestSuccessfulGroupDeployment implements depgraph.GroupLookup: "has
// this app_group ever been deployed successfully, in any namespace?"
// (spec.md §4.3, §9 "Cross-document deps resolution" — a pure query
// against the state store, namespace-neutral).
func (s *Store) LatestSuccessfulGroupDeployment(appGroup string) (*depgraph.GroupDeploymentInfo, bool, error) {
	var d Deployment
	err := s.db.Get(&d, `
		SELECT * FROM deployments
		WHERE app_group = ? AND status IN (?, ?)
		ORDER BY started_at DESC LIMIT 1
	`, appGroup, string(DeploymentSuccess), string(DeploymentPartialFailure))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.State, err, "cannot query group deployment history for "+appGroup)
	}
	return &depgraph.GroupDeploymentInfo{Namespace: d.Namespace, Cluster: d.Cluster}, true, nil
}
