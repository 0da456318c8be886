package depgraph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/sbkube/sbkube/internal/errs"
)

// GroupDeploymentInfo is the minimal fact the inter-group resolver needs
// about a prior deployment of an app group.
type GroupDeploymentInfo struct {
	Namespace string
	Cluster   string
}

// GroupLookup is satisfied by the state store: "has this app_group ever
// been deployed successfully, in any namespace?" (spec.md §4.3 — namespaces
// are auto-discovered from the state store, never inferred from the
// current command's --namespace).
type GroupLookup interface {
	LatestSuccessfulGroupDeployment(appGroup string) (*GroupDeploymentInfo, bool, error)
}

// GroupRequirement is one application's `deps` entry.
type GroupRequirement struct {
	AppName  string
	AppGroup string
	Requires []string
}

// ResolveInterGroup checks every requirement against the state store. When
// blocking is true (apply/deploy) every unmet requirement is collected into
// one fatal error; when false (validate) every unmet requirement is
// collected as a warning instead (spec.md §4.3, §8.2 scenario S6).
func ResolveInterGroup(lookup GroupLookup, reqs []GroupRequirement, blocking bool) (warnings []string, err error) {
	var agg *multierror.Error
	for _, req := range reqs {
		for _, group := range req.Requires {
			info, ok, lookupErr := lookup.LatestSuccessfulGroupDeployment(group)
			if lookupErr != nil {
				return warnings, errs.Wrap(errs.State, lookupErr, "cannot query deployment history")
			}
			if ok {
				continue
			}
			msg := fmt.Sprintf(
				"apps.%s (group %s) depends on group %q, which has no successful deployment yet",
				req.AppName, req.AppGroup, group)
			if blocking {
				agg = multierror.Append(agg, fmt.Errorf("%s", msg))
			} else {
				warnings = append(warnings, msg)
			}
			_ = info
		}
	}
	if blocking {
		if aggErr := agg.ErrorOrNil(); aggErr != nil {
			return warnings, errs.Wrap(errs.Validation, aggErr, "dependency groups not satisfied").
				WithHint("deploy the listed groups first, then retry")
		}
	}
	return warnings, nil
}
