package pipeline

import (
	"context"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/faults"
)

// FailureTypeConfiguration is the category attached to every launcher failure.
// Launcher failures come from malformed input or configuration, not transient faults.
const FailureTypeConfiguration = "ConfigurationError"

// maxFailureMessage is the orchestrator's limit on failure message length.
const maxFailureMessage = 5000

type StageState struct {
	Name              string
	LatestExecutionID string
	Actions           []string
}

type Failure struct {
	Type                string
	Message             string
	ExternalExecutionID string
}

// Orchestrator is the pipeline control surface used by the launcher.
type Orchestrator interface {
	PipelineState(ctx context.Context, pipeline string) ([]StageState, error)
	PutJobSuccess(ctx context.Context, jobID string) error
	PutJobFailure(ctx context.Context, jobID string, failure Failure) error
}

// ResolveExecution returns the latest execution id of the stage that holds the
// named action. A missing stage, action or execution is ExecutionNotFound.
func ResolveExecution(states []StageState, stage, action string) (string, error) {
	for _, st := range states {
		if st.Name != stage {
			continue
		}
		for _, a := range st.Actions {
			if a != action {
				continue
			}
			if strings.TrimSpace(st.LatestExecutionID) == "" {
				return "", faults.Errorf(faults.KindExecutionNotFound, "stage %s has no latest execution", stage)
			}
			return st.LatestExecutionID, nil
		}
	}
	return "", faults.Errorf(faults.KindExecutionNotFound, "no %s/%s action state in pipeline", stage, action)
}

func truncateMessage(msg string) string {
	if len(msg) <= maxFailureMessage {
		return msg
	}
	const suffix = "..."
	cut := maxFailureMessage - len(suffix)
	// Do not split a multi-byte rune.
	for cut > 0 && !isRuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + suffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
