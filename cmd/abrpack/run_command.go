package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"abrpack/internal/catalog"
	"abrpack/internal/config"
	"abrpack/internal/deps"
	"abrpack/internal/logging"
	"abrpack/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var destDir string
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Transcode a source file into an HLS bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-parallel") {
				cfg.Transcode.MaxParallel = maxParallel
			}

			logger, err := newRunLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			statuses := deps.CheckBinaries(deps.Default(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
			for _, status := range statuses {
				logger.Debug("external tool",
					logging.String("name", status.Name),
					logging.Bool("available", status.Available))
			}
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}

			opts := []pipeline.Option{}
			store, storeErr := catalog.Open(cfg)
			if storeErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: bundle catalog unavailable: %v\n", storeErr)
			} else {
				defer store.Close()
				opts = append(opts, pipeline.WithCatalog(store))
			}

			result, err := pipeline.New(cfg, logger, opts...).Run(cmd.Context(), pipeline.Request{
				SourcePath: args[0],
				DestDir:    destDir,
			})
			if err != nil {
				return err
			}

			printRunSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "output", "o", "", "Destination directory for the bundle (defaults to the configured output directory)")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Maximum concurrent encoder processes (0 runs the whole ladder at once)")
	return cmd
}

func newRunLogger(cfg *config.Config) (*slog.Logger, error) {
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("abrpack-%s.log", runID))
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
}

func printRunSummary(cmd *cobra.Command, result *pipeline.Result) {
	out := cmd.OutOrStdout()
	if file, ok := out.(*os.File); ok && isTerminal(file.Fd()) {
		rows := make([][]string, 0, len(result.Renditions))
		for _, rendition := range result.Renditions {
			rows = append(rows, []string{
				rendition.Rung.Label,
				rendition.Rung.Resolution,
				fmt.Sprintf("%d", rendition.Rung.Bandwidth),
				rendition.Path,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Rung", "Resolution", "Bandwidth", "Output"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	} else {
		for _, rendition := range result.Renditions {
			fmt.Fprintf(out, "%s\t%s\t%d\t%s\n",
				rendition.Rung.Label, rendition.Rung.Resolution, rendition.Rung.Bandwidth, rendition.Path)
		}
	}
	fmt.Fprintf(out, "Master manifest: %s\n", result.MasterManifest)
	fmt.Fprintf(out, "Completed in %s\n", result.Elapsed.Round(time.Millisecond))
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
