// Package training submits composed job specifications to a training backend and
// enables the out-of-band monitor that tracks their completion.
package training

import (
	"context"
	"errors"

	"github.com/animus-labs/animus-mlops/internal/jobspec"
)

// ErrDuplicateJob is returned by Submit when the backend already holds a job with
// the submitted name.
var ErrDuplicateJob = errors.New("training job already exists")

// Service is the training backend surface used by the launcher. Submit starts the
// job asynchronously and never waits for it to finish.
type Service interface {
	Kind() string
	Submit(ctx context.Context, spec jobspec.Spec) (Submission, error)
	EnableMonitor(ctx context.Context, rule string) error
}

type Submission struct {
	JobName string
	Ref     string
}
