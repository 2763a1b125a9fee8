package jobspec

import (
	"errors"
	"maps"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/faults"
)

// JobIDTagKey is the tag carrying the triggering pipeline job id.
const JobIDTagKey = "jobid"

// Composer resolves templates into submissions. It performs no I/O and keeps
// no state between calls, so composing the same inputs twice yields the same spec.
type Composer struct {
	naming    Naming
	overrides map[string]string
}

func NewComposer(naming Naming, overrides map[string]string) (*Composer, error) {
	naming = naming.WithDefaults()
	if err := naming.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseHyperParameters(overrides); err != nil {
		return nil, err
	}
	return &Composer{naming: naming, overrides: maps.Clone(overrides)}, nil
}

func (c *Composer) Naming() Naming {
	return c.naming
}

func (c *Composer) Names(id Identity, exec Execution) Names {
	return c.naming.Resolve(id, exec)
}

// Compose overwrites image, role, job name, output path, primary input URI
// and appends the job id tag. The template is left untouched.
func (c *Composer) Compose(tmpl Spec, id Identity, exec Execution) (Spec, error) {
	if err := checkIdentity(id, exec); err != nil {
		return Spec{}, faults.New(faults.KindComposition, "compose", err)
	}
	if err := checkTemplate(tmpl); err != nil {
		return Spec{}, faults.New(faults.KindComposition, "compose", err)
	}

	names := c.naming.Resolve(id, exec)
	if !ValidJobName(names.JobName) {
		return Spec{}, faults.Errorf(faults.KindComposition, "derived job name %q is not a valid training job name", names.JobName)
	}

	out := tmpl.Clone()
	out.AlgorithmSpecification.TrainingImage = names.Image
	out.RoleArn = names.Role
	out.TrainingJobName = names.JobName
	out.OutputDataConfig.S3OutputPath = names.OutputPath
	out.InputDataConfig[0].DataSource.S3DataSource.S3Uri = names.InputURI
	out.Tags = append(out.Tags, Tag{Key: JobIDTagKey, Value: exec.JobID})

	if len(c.overrides) > 0 {
		if out.HyperParameters == nil {
			out.HyperParameters = make(map[string]string, len(c.overrides))
		}
		maps.Copy(out.HyperParameters, c.overrides)
	}
	if _, err := ParseHyperParameters(out.HyperParameters); err != nil {
		return Spec{}, faults.New(faults.KindComposition, "hyperparameters", err)
	}
	return out, nil
}

func checkIdentity(id Identity, exec Execution) error {
	var missing []string
	if strings.TrimSpace(id.AccountID) == "" {
		missing = append(missing, "account id")
	}
	if strings.TrimSpace(id.Region) == "" {
		missing = append(missing, "region")
	}
	if strings.TrimSpace(id.ModelName) == "" {
		missing = append(missing, "model name")
	}
	if strings.TrimSpace(exec.ExecutionID) == "" {
		missing = append(missing, "execution id")
	}
	if strings.TrimSpace(exec.JobID) == "" {
		missing = append(missing, "job id")
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

func checkTemplate(tmpl Spec) error {
	var missing []string
	if tmpl.AlgorithmSpecification == nil {
		missing = append(missing, "AlgorithmSpecification")
	}
	if tmpl.OutputDataConfig == nil {
		missing = append(missing, "OutputDataConfig")
	}
	switch {
	case len(tmpl.InputDataConfig) == 0:
		missing = append(missing, "InputDataConfig[0]")
	case tmpl.InputDataConfig[0].DataSource == nil:
		missing = append(missing, "InputDataConfig[0].DataSource")
	case tmpl.InputDataConfig[0].DataSource.S3DataSource == nil:
		missing = append(missing, "InputDataConfig[0].DataSource.S3DataSource")
	}
	if len(missing) > 0 {
		return errors.New("template is missing " + strings.Join(missing, ", "))
	}
	return nil
}
