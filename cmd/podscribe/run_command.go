package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/pkg/config"
	"podscribe/pkg/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest the feed, then transcribe everything pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configFor(config.PurposeRun)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg, "run")
			if err != nil {
				return err
			}

			return withLockedStore(cfg, func(st *store.Store) error {
				ingester, err := newIngester(cfg, st, logger, force)
				if err != nil {
					return err
				}
				ingestStats, err := ingester.Run(cmd.Context(), cfg.Feed.URL)
				if err != nil {
					return err
				}

				transcribeStats, err := newTranscriber(cfg, st, logger).Run(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Episodes captured: %d, transcripts written: %d, failed transcriptions: %d\n",
					ingestStats.Resolved, transcribeStats.Transcribed, transcribeStats.Failed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-fetch episodes that are already stored")
	return cmd
}
