package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLadderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ladder",
		Short: "Show the configured quality ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rungs := cfg.Ladder()
			rows := make([][]string, 0, len(rungs))
			for _, rung := range rungs {
				rows = append(rows, []string{
					rung.Label,
					rung.Resolution,
					rung.Bitrate,
					fmt.Sprintf("%d", rung.Bandwidth),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Rung", "Resolution", "Bitrate", "Bandwidth"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}
