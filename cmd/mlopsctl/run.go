package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/animus-labs/animus-mlops/internal/app"
	"github.com/animus-labs/animus-mlops/internal/evaluation"
	"github.com/animus-labs/animus-mlops/internal/pipeline"
	"github.com/animus-labs/animus-mlops/internal/platform/requestid"
)

type loggerFactory func(cmd *cobra.Command) (*slog.Logger, error)

type launchSummary struct {
	Result      string   `json:"result"`
	RequestID   string   `json:"request_id"`
	State       string   `json:"state"`
	Trace       []string `json:"trace"`
	ExecutionID string   `json:"execution_id,omitempty"`
	JobName     string   `json:"job_name,omitempty"`
	Submission  string   `json:"submission,omitempty"`
	Reported    bool     `json:"reported"`
	Error       string   `json:"error,omitempty"`
}

func newLaunchCmd(newLogger loggerFactory) *cobra.Command {
	var eventPath string
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Run the training launcher once against a pipeline job event",
		Long: "Run the training launcher once against a pipeline job event file (JSON or YAML).\n" +
			"Configuration is read from the same environment variables as the launcher binary.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			raw, err := readEventFile(cmd, eventPath)
			if err != nil {
				return err
			}
			ev, err := pipeline.DecodeEvent(raw)
			if err != nil {
				return err
			}
			cfg, err := app.LauncherConfigFromEnv()
			if err != nil {
				return err
			}
			rt, err := app.NewLauncherRuntime(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ctx, reqID := requestid.Ensure(cmd.Context())
			res := rt.Launcher.Run(ctx, ev, reqID)
			return writeJSON(cmd.OutOrStdout(), summarizeLaunch(res, reqID))
		},
	}
	cmd.Flags().StringVar(&eventPath, "event", "-", "event file, - for stdin")
	return cmd
}

func summarizeLaunch(res pipeline.Result, reqID string) launchSummary {
	s := launchSummary{
		Result:      pipeline.Done,
		RequestID:   reqID,
		State:       string(res.State),
		ExecutionID: res.ExecutionID,
		JobName:     res.JobName,
		Submission:  res.Submission.Ref,
		Reported:    res.Reported,
	}
	for _, st := range res.Trace {
		s.Trace = append(s.Trace, string(st))
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

func newEvaluateCmd(newLogger loggerFactory) *cobra.Command {
	var eventPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the endpoint evaluator once against an evaluation event",
		Long: "Run the endpoint evaluator once against an evaluation event file (JSON or YAML).\n" +
			"Configuration is read from the same environment variables as the evaluator binary.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			raw, err := readEventFile(cmd, eventPath)
			if err != nil {
				return err
			}
			ev, err := evaluation.DecodeEvent(raw)
			if err != nil {
				return err
			}
			cfg, err := app.EvaluatorConfigFromEnv()
			if err != nil {
				return err
			}
			rt, err := app.NewEvaluatorRuntime(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ctx, reqID := requestid.Ensure(cmd.Context())
			out, err := rt.Evaluator.Run(ctx, ev, reqID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out.Summary)
		},
	}
	cmd.Flags().StringVar(&eventPath, "event", "-", "event file, - for stdin")
	return cmd
}
