package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/pkg/config"
	"podscribe/pkg/store"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe every stored episode that has audio but no transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configFor(config.PurposeTranscribe)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg, "transcribe")
			if err != nil {
				return err
			}

			return withLockedStore(cfg, func(st *store.Store) error {
				stats, err := newTranscriber(cfg, st, logger).Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Audio files: %d, transcribed %d, already done %d, failed %d\n",
					stats.AudioFiles, stats.Transcribed, stats.AlreadyDone, stats.Failed)
				return nil
			})
		},
	}
}
