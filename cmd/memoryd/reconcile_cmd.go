package main

import (
	"fmt"

	"github.com/habiliai/memoryd/store"
	"github.com/jcooky/go-din"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	params := &struct {
		Limit int
	}{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay graph operations that failed earlier",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			adapter := din.MustGetT[*store.Adapter](c)
			if !adapter.GraphEnabled() {
				return errors.New("graph memory is disabled, nothing to reconcile")
			}

			report, err := adapter.Reconcile(c, params.Limit)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, succeeded %d, failed %d\n", report.Processed, report.Succeeded, report.Failed)
			if report.Failed > 0 {
				return errors.Errorf("%d outbox entries are still pending", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Limit, "limit", 1000, "Maximum number of outbox entries to replay")

	return cmd
}
