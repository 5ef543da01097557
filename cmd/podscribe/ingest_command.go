package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/pkg/config"
	"podscribe/pkg/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Capture new episodes from the configured feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configFor(config.PurposeIngest)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg, "ingest")
			if err != nil {
				return err
			}

			return withLockedStore(cfg, func(st *store.Store) error {
				ingester, err := newIngester(cfg, st, logger, force)
				if err != nil {
					return err
				}
				stats, err := ingester.Run(cmd.Context(), cfg.Feed.URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Episodes: %d found, %d captured, %d already stored, %d failed, %d audio downloaded\n",
					stats.Discovered, stats.Resolved, stats.Cached, stats.Failed, stats.Downloaded)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-fetch episodes that are already stored and overwrite their data.json")
	return cmd
}
