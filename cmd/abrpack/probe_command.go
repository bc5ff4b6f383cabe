package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"abrpack/internal/probe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <source>",
		Short: "Inspect a source file without transcoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prober := probe.NewCLI(probe.WithBinary(cfg.FFprobeBinary()))

			if asJSON {
				raw, err := prober.Info(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				// ffprobe already emits JSON; re-indent it for the terminal.
				var parsed any
				if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
					_, writeErr := cmd.OutOrStdout().Write(raw)
					return writeErr
				}
				return writeJSON(cmd, parsed)
			}

			duration, err := prober.Duration(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Duration: %.3f seconds\n", duration)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full ffprobe report as JSON")
	return cmd
}
