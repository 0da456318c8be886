package report

import "github.com/sbkube/sbkube/internal/state"

// HistoryFilter mirrors the history command's --cluster/--namespace/--app/--limit flags.
type HistoryFilter struct {
	Cluster   string
	Namespace string
	App       string
	Limit     int
}

// LoadHistory queries the store and assembles DeploymentViews, newest first.
func LoadHistory(store *state.Store, filter HistoryFilter) ([]DeploymentView, error) {
	deployments, err := store.History(filter.Cluster, filter.Namespace, filter.App, filter.Limit)
	if err != nil {
		return nil, err
	}

	views := make([]DeploymentView, 0, len(deployments))
	for _, d := range deployments {
		apps, err := store.AppDeploymentsFor(d.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, DeploymentView{Deployment: d, Apps: apps})
	}
	return views, nil
}

// LoadStatus returns the single most recent Deployment (across all
// clusters/namespaces) for the `status` command's default, unfiltered view.
func LoadStatus(store *state.Store, filter HistoryFilter) ([]DeploymentView, error) {
	if filter.Limit == 0 {
		filter.Limit = 1
	}
	return LoadHistory(store, filter)
}
