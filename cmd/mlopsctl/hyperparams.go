package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/animus-labs/animus-mlops/internal/jobspec"
)

func newHyperParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hyperparams <template>",
		Short: "Classify the hyperparameters of a job spec template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			tmpl, err := jobspec.Decode(data)
			if err != nil {
				return err
			}
			hps, err := jobspec.ParseHyperParameters(tmpl.HyperParameters)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tVALUE")
			for _, name := range hps.Names() {
				hp := hps[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, hp.Kind, hp.Raw)
			}
			return tw.Flush()
		},
	}
}
