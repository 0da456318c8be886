// Package pipeline implements the Pipeline Orchestrator (spec.md §4.4): the
// four per-app stages (prepare/build/template/deploy), their unification
// into `apply`, dependency-topological worker-pool scheduling (spec.md §5),
// and the JSON execution trace backing --resume/--retry-failed.
package pipeline

import "github.com/sbkube/sbkube/internal/errs"

// Stage is one of the four pipeline stages a ResolvedApp passes through.
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageBuild    Stage = "build"
	StageTemplate Stage = "template"
	StageDeploy   Stage = "deploy"
)

// StageOrder is the canonical prepare->build->template->deploy sequence
// --from-step/--to-step/--only operate over (spec.md §4.4 "Re-run
// semantics", spec.md §6.1).
var StageOrder = []Stage{StagePrepare, StageBuild, StageTemplate, StageDeploy}

// ParseStage validates a user-supplied stage name against StageOrder.
func ParseStage(s string) (Stage, error) {
	for _, st := range StageOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errs.New(errs.Configuration, "unknown stage \""+s+"\": expected one of prepare, build, template, deploy")
}

func stageIndex(s Stage) int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// ResolveStages turns --from-step/--to-step/--only into the ordered subset
// of StageOrder a command should run (spec.md §4.4 "Re-run semantics":
// "--from-step <stage> starts at the named stage...--to-step <stage> stops
// after it...--only <stage> runs exactly one stage"). An empty from/to/only
// runs the full sequence.
func ResolveStages(from, to, only string) ([]Stage, error) {
	if only != "" {
		if from != "" || to != "" {
			return nil, errs.New(errs.Configuration, "--only cannot be combined with --from-step/--to-step")
		}
		st, err := ParseStage(only)
		if err != nil {
			return nil, err
		}
		return []Stage{st}, nil
	}

	fromIdx, toIdx := 0, len(StageOrder)-1
	if from != "" {
		st, err := ParseStage(from)
		if err != nil {
			return nil, err
		}
		fromIdx = stageIndex(st)
	}
	if to != "" {
		st, err := ParseStage(to)
		if err != nil {
			return nil, err
		}
		toIdx = stageIndex(st)
	}
	if fromIdx > toIdx {
		return nil, errs.New(errs.Configuration, "--from-step must not come after --to-step")
	}
	return append([]Stage(nil), StageOrder[fromIdx:toIdx+1]...), nil
}
