package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/animus-labs/animus-mlops/internal/app"
	"github.com/animus-labs/animus-mlops/internal/jobspec"
	"github.com/animus-labs/animus-mlops/internal/platform/k8s"
	"github.com/animus-labs/animus-mlops/internal/training"
)

const (
	outputSpec       = "spec"
	outputSageMaker  = "sagemaker"
	outputKubernetes = "kubernetes"
)

type composeOptions struct {
	template    string
	profile     string
	account     string
	region      string
	model       string
	pipeline    string
	executionID string
	jobID       string
	output      string
	namespace   string
}

func newComposeCmd() *cobra.Command {
	var opts composeOptions
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a training job spec from a local template without submitting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requiredFlags(cmd, "template", "account", "model", "execution-id", "job-id"); err != nil {
				return err
			}
			return runCompose(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.template, "template", "", "path to the job spec template (trainingjob.json)")
	f.StringVar(&opts.profile, "profile", "", "optional YAML pipeline profile")
	f.StringVar(&opts.account, "account", "", "AWS account id")
	f.StringVar(&opts.region, "region", "eu-west-1", "AWS region")
	f.StringVar(&opts.model, "model", "", "model name")
	f.StringVar(&opts.pipeline, "pipeline", "", "pipeline name")
	f.StringVar(&opts.executionID, "execution-id", "", "pipeline execution id")
	f.StringVar(&opts.jobID, "job-id", "", "triggering pipeline job id")
	f.StringVar(&opts.output, "output", outputSpec, "output form: spec, sagemaker or kubernetes")
	f.StringVar(&opts.namespace, "namespace", "training", "namespace for --output kubernetes")
	return cmd
}

func runCompose(cmd *cobra.Command, opts composeOptions) error {
	data, err := os.ReadFile(opts.template)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	tmpl, err := jobspec.Decode(data)
	if err != nil {
		return err
	}
	profile, err := app.LoadProfile(opts.profile)
	if err != nil {
		return err
	}
	composer, err := profile.Composer()
	if err != nil {
		return err
	}

	spec, err := composer.Compose(tmpl,
		jobspec.Identity{AccountID: opts.account, Region: opts.region, ModelName: opts.model},
		jobspec.Execution{PipelineName: opts.pipeline, ExecutionID: opts.executionID, JobID: opts.jobID},
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case outputSpec:
		return writeJSON(out, spec)
	case outputSageMaker:
		in, err := training.CreateTrainingJobInput(spec)
		if err != nil {
			return err
		}
		return writeJSON(out, in)
	case outputKubernetes:
		svc, err := training.NewKubernetesService(dryRunJobs{}, opts.namespace, 0, "")
		if err != nil {
			return err
		}
		job, err := svc.BuildJob(spec)
		if err != nil {
			return err
		}
		return writeJSON(out, job)
	default:
		return fmt.Errorf("unknown --output %q (want spec, sagemaker or kubernetes)", opts.output)
	}
}

var errDryRun = errors.New("dry run: no cluster access")

// dryRunJobs lets compose render manifests without a cluster.
type dryRunJobs struct{}

func (dryRunJobs) Namespace() string { return "" }

func (dryRunJobs) CreateJob(ctx context.Context, namespace string, job k8s.Job) error {
	return errDryRun
}

func (dryRunJobs) SetCronJobSuspended(ctx context.Context, namespace string, name string, suspended bool) error {
	return errDryRun
}
