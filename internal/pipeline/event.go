// Package pipeline turns a continuous-delivery job event into a training job
// submission and reports the outcome back to the pipeline orchestrator.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/jobspec"
)

// Event is the job event delivered by the orchestrator to a pipeline action.
type Event struct {
	Job Job `json:"CodePipeline.job"`
}

type Job struct {
	ID        string  `json:"id"`
	AccountID string  `json:"accountId"`
	Data      JobData `json:"data"`
}

type JobData struct {
	ActionConfiguration ActionConfiguration `json:"actionConfiguration"`
	InputArtifacts      []Artifact          `json:"inputArtifacts"`
	OutputArtifacts     []Artifact          `json:"outputArtifacts,omitempty"`
}

type ActionConfiguration struct {
	Configuration map[string]string `json:"configuration,omitempty"`
}

type Artifact struct {
	Name     string           `json:"name"`
	Revision string           `json:"revision,omitempty"`
	Location ArtifactLocation `json:"location"`
}

type ArtifactLocation struct {
	Type       string     `json:"type,omitempty"`
	S3Location S3Location `json:"s3Location"`
}

type S3Location struct {
	BucketName string `json:"bucketName"`
	ObjectKey  string `json:"objectKey"`
}

func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, faults.New(faults.KindInputValidation, "decode job event", err)
	}
	return ev, nil
}

func (ev Event) Validate() error {
	if strings.TrimSpace(ev.Job.ID) == "" {
		return faults.Errorf(faults.KindInputValidation, "job event is missing %s", "CodePipeline.job.id")
	}
	return nil
}

// SourceArtifact returns the location of the input artifact with the given name.
func (ev Event) SourceArtifact(name string) (jobspec.Location, error) {
	for _, a := range ev.Job.Data.InputArtifacts {
		if a.Name != name {
			continue
		}
		loc := jobspec.Location{Bucket: a.Location.S3Location.BucketName, Key: a.Location.S3Location.ObjectKey}
		if strings.TrimSpace(loc.Bucket) == "" || strings.TrimSpace(loc.Key) == "" {
			return jobspec.Location{}, faults.Errorf(faults.KindArtifactCorrupt, "input artifact %q has no object location", name)
		}
		return loc, nil
	}
	names := make([]string, 0, len(ev.Job.Data.InputArtifacts))
	for _, a := range ev.Job.Data.InputArtifacts {
		names = append(names, a.Name)
	}
	return jobspec.Location{}, faults.New(faults.KindArtifactNotFound, "select source artifact",
		fmt.Errorf("input artifact %q not present (have %v)", name, names))
}
