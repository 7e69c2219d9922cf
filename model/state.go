package model

type BuildState string

const (
	BuildStateInit      BuildState = "init"
	BuildStateValidated BuildState = "validated"
	BuildStateSkipped   BuildState = "skipped"
	BuildStateLoggingIn BuildState = "logging-in"
	BuildStateBuilding  BuildState = "building"
	BuildStateTagging   BuildState = "tagging"
	BuildStatePushing   BuildState = "pushing"
	BuildStateDone      BuildState = "done"
	BuildStateFailed    BuildState = "failed"
)

// StateForStage is the state the pipeline is in while the stage runs.
func StateForStage(s Stage) BuildState {
	switch s {
	case StageLogin:
		return BuildStateLoggingIn
	case StageBuild:
		return BuildStateBuilding
	case StageTag:
		return BuildStateTagging
	case StagePush:
		return BuildStatePushing
	}
	return BuildStateFailed
}

func (s BuildState) Terminal() bool {
	return s == BuildStateSkipped || s == BuildStateDone || s == BuildStateFailed
}
