package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/jobspec"
	"github.com/animus-labs/animus-mlops/internal/platform/auditlog"
	"github.com/animus-labs/animus-mlops/internal/platform/metrics"
	"github.com/animus-labs/animus-mlops/internal/training"
)

// Done is what every launcher invocation returns. The outcome travels through
// the orchestrator callback, not the return value.
const Done = "Done"

type State string

const (
	StateIdle               State = "Idle"
	StateResolvingExecution State = "ResolvingExecution"
	StateExtractingArtifact State = "ExtractingArtifact"
	StateComposingSpec      State = "ComposingSpec"
	StateSubmitting         State = "Submitting"
	StateMonitoringEnabled  State = "MonitoringEnabled"
	StateReportingSuccess   State = "ReportingSuccess"
	StateReportingFailure   State = "ReportingFailure"
)

// DuplicatePolicy decides what a duplicate-name rejection from the training
// service means. A redelivered event derives the same job name as the first
// delivery, so "succeed" treats the rejection as already-submitted.
type DuplicatePolicy string

const (
	DuplicateSucceed DuplicatePolicy = "succeed"
	DuplicateFail    DuplicatePolicy = "fail"
)

func ParseDuplicatePolicy(raw string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DuplicateSucceed, nil
	case DuplicateSucceed, DuplicateFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want succeed or fail)", raw)
	}
}

type Settings struct {
	PipelineName    string
	TrainStage      string
	TrainAction     string
	SourceArtifact  string
	Identity        jobspec.Identity
	DuplicatePolicy DuplicatePolicy
}

func (s Settings) Validate() error {
	var missing []string
	if strings.TrimSpace(s.PipelineName) == "" {
		missing = append(missing, "pipeline name")
	}
	if strings.TrimSpace(s.TrainStage) == "" {
		missing = append(missing, "train stage")
	}
	if strings.TrimSpace(s.TrainAction) == "" {
		missing = append(missing, "train action")
	}
	if strings.TrimSpace(s.SourceArtifact) == "" {
		missing = append(missing, "source artifact")
	}
	if strings.TrimSpace(s.Identity.ModelName) == "" {
		missing = append(missing, "model name")
	}
	if strings.TrimSpace(s.Identity.AccountID) == "" {
		missing = append(missing, "account id")
	}
	if strings.TrimSpace(s.Identity.Region) == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return errors.New("launcher settings missing " + strings.Join(missing, ", "))
	}
	if _, err := ParseDuplicatePolicy(string(s.DuplicatePolicy)); err != nil {
		return err
	}
	return nil
}

type SpecExtractor interface {
	Extract(ctx context.Context, loc jobspec.Location) (jobspec.Spec, error)
}

type Auditor interface {
	Record(ctx context.Context, event auditlog.Event) error
}

// Deps holds every external handle the launcher uses. main builds it once;
// tests substitute fakes.
type Deps struct {
	Orchestrator Orchestrator
	Extractor    SpecExtractor
	Composer     *jobspec.Composer
	Training     training.Service
	Audit        Auditor
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

type Launcher struct {
	settings Settings
	deps     Deps
	now      func() time.Time
}

func NewLauncher(settings Settings, deps Deps) (*Launcher, error) {
	if settings.DuplicatePolicy == "" {
		settings.DuplicatePolicy = DuplicateSucceed
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Orchestrator == nil:
		return nil, errors.New("orchestrator is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Composer == nil:
		return nil, errors.New("composer is required")
	case deps.Training == nil:
		return nil, errors.New("training service is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{settings: settings, deps: deps, now: time.Now}, nil
}

// Result describes one launcher invocation. State is the terminal state reached.
type Result struct {
	State       State
	Trace       []State
	ExecutionID string
	JobName     string
	Submission  training.Submission
	Duplicate   bool
	MonitorErr  error
	Err         error
	Reported    bool
}

func (r Result) Succeeded() bool {
	return r.State == StateReportingSuccess && r.Err == nil
}

type run struct {
	l         *Launcher
	ev        Event
	requestID string
	log       *slog.Logger
	res       Result
}

func (r *run) enter(s State) {
	r.res.State = s
	r.res.Trace = append(r.res.Trace, s)
	r.log.Debug("launcher state", "state", string(s))
}

// Run drives one event through the state machine. Every stage failure ends in
// a failure report to the orchestrator; nothing is returned as an error.
func (l *Launcher) Run(ctx context.Context, ev Event, requestID string) Result {
	started := l.now()
	r := &run{
		l:         l,
		ev:        ev,
		requestID: requestID,
		log: l.deps.Logger.With(
			"job_id", ev.Job.ID,
			"request_id", requestID,
			"pipeline", l.settings.PipelineName,
			"model", l.settings.Identity.ModelName,
		),
	}
	r.enter(StateIdle)

	if err := ev.Validate(); err != nil {
		r.res.Err = err
		r.enter(StateReportingFailure)
		r.log.Error("job event rejected; no job id to report against", "error", err)
	} else if err := r.launch(ctx); err != nil {
		r.fail(ctx, err)
	} else {
		r.succeed(ctx)
	}

	r.finish(ctx, started)
	return r.res
}

func (r *run) launch(ctx context.Context) error {
	l := r.l
	r.log.Info("launch requested", "input_artifacts", len(r.ev.Job.Data.InputArtifacts))

	r.enter(StateResolvingExecution)
	states, err := l.deps.Orchestrator.PipelineState(ctx, l.settings.PipelineName)
	if err != nil {
		return faults.New(faults.KindOrchestratorUnavailable, "resolve execution", err)
	}
	executionID, err := ResolveExecution(states, l.settings.TrainStage, l.settings.TrainAction)
	if err != nil {
		return err
	}
	r.res.ExecutionID = executionID
	r.log = r.log.With("execution_id", executionID)

	r.enter(StateExtractingArtifact)
	loc, err := r.ev.SourceArtifact(l.settings.SourceArtifact)
	if err != nil {
		return err
	}
	tmpl, err := l.deps.Extractor.Extract(ctx, loc)
	if err != nil {
		return err
	}

	r.enter(StateComposingSpec)
	exec := jobspec.Execution{
		PipelineName:     l.settings.PipelineName,
		ExecutionID:      executionID,
		JobID:            r.ev.Job.ID,
		TriggerAccountID: r.ev.Job.AccountID,
	}
	spec, err := l.deps.Composer.Compose(tmpl, l.settings.Identity, exec)
	if err != nil {
		return err
	}
	names := l.deps.Composer.Names(l.settings.Identity, exec)
	r.res.JobName = spec.TrainingJobName
	if raw, err := jobspec.Canonical(spec); err == nil {
		r.log.Info("job spec composed", "training_job_name", spec.TrainingJobName, "spec", string(raw))
	}

	r.enter(StateSubmitting)
	sub, err := l.deps.Training.Submit(ctx, spec)
	switch {
	case err == nil:
		r.log.Info("training job submitted", "backend", l.deps.Training.Kind(), "training_job_name", sub.JobName, "ref", sub.Ref)
	case errors.Is(err, training.ErrDuplicateJob) && l.settings.DuplicatePolicy == DuplicateSucceed:
		r.res.Duplicate = true
		r.log.Warn("training job already submitted for this execution", "training_job_name", spec.TrainingJobName)
	default:
		return faults.New(faults.KindSubmission, "submit "+spec.TrainingJobName, err)
	}
	r.res.Submission = sub

	// Past submission the job is running; a monitor failure no longer fails the launch.
	r.enter(StateMonitoringEnabled)
	if err := l.deps.Training.EnableMonitor(ctx, names.MonitorRule); err != nil {
		r.res.MonitorErr = faults.New(faults.KindMonitoring, "enable "+names.MonitorRule, err)
		r.log.Warn("monitor rule not enabled", "rule", names.MonitorRule, "error", err)
	} else {
		r.log.Info("monitor rule enabled", "rule", names.MonitorRule)
	}
	return nil
}

func (r *run) succeed(ctx context.Context) {
	r.enter(StateReportingSuccess)
	err := r.l.deps.Orchestrator.PutJobSuccess(ctx, r.ev.Job.ID)
	if err == nil {
		r.res.Reported = true
		r.log.Info("job success reported", "training_job_name", r.res.JobName)
		return
	}
	r.log.Error("job success report failed", "error", err)
	r.fail(ctx, faults.New(faults.KindOrchestratorUnavailable, "report success", err))
}

func (r *run) fail(ctx context.Context, err error) {
	r.res.Err = err
	r.enter(StateReportingFailure)
	r.log.Error("launch failed", "kind", string(faults.KindOf(err)), "state", string(r.lastWorkingState()), "error", err)

	failure := Failure{
		Type:                FailureTypeConfiguration,
		Message:             err.Error(),
		ExternalExecutionID: r.requestID,
	}
	if perr := r.l.deps.Orchestrator.PutJobFailure(ctx, r.ev.Job.ID, failure); perr != nil {
		r.res.Reported = false
		r.log.Error("job failure report failed", "error", perr)
		return
	}
	r.res.Reported = true
}

// lastWorkingState is the state the run was in before it started reporting.
func (r *run) lastWorkingState() State {
	for i := len(r.res.Trace) - 1; i >= 0; i-- {
		switch s := r.res.Trace[i]; s {
		case StateReportingFailure, StateReportingSuccess:
			continue
		default:
			return s
		}
	}
	return StateIdle
}

func (r *run) finish(ctx context.Context, started time.Time) {
	outcome := "success"
	if !r.res.Succeeded() {
		outcome = "failure"
	}
	r.l.deps.Metrics.ObserveLaunch(outcome, string(faults.KindOf(r.res.Err)), r.l.now().Sub(started))

	if r.l.deps.Audit == nil {
		return
	}
	payload := map[string]any{
		"outcome":      outcome,
		"execution_id": r.res.ExecutionID,
		"duplicate":    r.res.Duplicate,
		"reported":     r.res.Reported,
		"trace":        r.res.Trace,
	}
	if r.res.Err != nil {
		payload["error_kind"] = string(faults.KindOf(r.res.Err))
		payload["error"] = r.res.Err.Error()
	}
	if r.res.MonitorErr != nil {
		payload["monitor_error"] = r.res.MonitorErr.Error()
	}
	resourceID := r.res.JobName
	if resourceID == "" {
		resourceID = r.ev.Job.ID
	}
	if resourceID == "" {
		resourceID = "unknown"
	}
	err := r.l.deps.Audit.Record(ctx, auditlog.Event{
		Action:       "training.launch",
		ResourceType: "training_job",
		ResourceID:   resourceID,
		RequestID:    r.requestID,
		Payload:      payload,
	})
	if err != nil {
		r.log.Warn("audit record failed", "error", err)
	}
}
