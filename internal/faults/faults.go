// Package faults defines the error kinds shared by the launcher and the evaluator.
//
// Every stage returns a *Error carrying one Kind so callers can decide the terminal
// outcome by matching on KindOf(err) instead of inspecting messages.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindUnknown                 Kind = ""
	KindInputValidation         Kind = "InputValidationError"
	KindArtifactNotFound        Kind = "ArtifactNotFound"
	KindArtifactCorrupt         Kind = "ArtifactCorrupt"
	KindComposition             Kind = "CompositionError"
	KindExecutionNotFound       Kind = "ExecutionNotFound"
	KindSubmission              Kind = "SubmissionError"
	KindMonitoring              Kind = "MonitoringError"
	KindDataset                 Kind = "DatasetError"
	KindEndpointInvocation      Kind = "EndpointInvocationError"
	KindReportPersist           Kind = "ReportPersistError"
	KindOrchestratorUnavailable Kind = "OrchestratorError"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the error text without the kind prefix.
func (e *Error) Message() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Op
	}
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
