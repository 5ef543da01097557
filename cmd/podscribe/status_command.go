package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"podscribe/pkg/config"
	"podscribe/pkg/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the capture and transcription state of every stored episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configFor(config.PurposeStatus)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Paths.StoreDir)
			if err != nil {
				return err
			}
			episodes, err := st.Episodes()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(episodes) == 0 {
				fmt.Fprintf(out, "No episodes in %s\n", st.Root())
				return nil
			}

			rows := make([][]string, 0, len(episodes))
			var pending int
			for _, ep := range episodes {
				size := "-"
				if ep.HasAudio {
					size = humanize.Bytes(uint64(ep.AudioBytes))
				}
				if ep.HasAudio && !ep.HasTranscript {
					pending++
				}
				rows = append(rows, []string{
					ep.Name,
					yesNo(ep.HasRecord),
					yesNo(ep.HasAudio),
					size,
					yesNo(ep.HasTranscript),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Episode", "Record", "Audio", "Size", "Transcript"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d episodes, %d awaiting transcription\n", len(episodes), pending)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
