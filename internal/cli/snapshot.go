package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/render"
	"github.com/roach88/sweeptrace/internal/source"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	ConfigPath string
	Batch      int
	PNG        string
	HTML       string
}

// SnapshotResult summarizes an offline render.
type SnapshotResult struct {
	Samples   int    `json:"samples"`
	Frames    int    `json:"frames"`
	Rollovers int    `json:"rollovers"`
	Overflows int    `json:"overflows"`
	Malformed int    `json:"malformed"`
	PNG       string `json:"png,omitempty"`
	HTML      string `json:"html,omitempty"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot <samples-file>",
		Short: "Render a sample file offline",
		Long: `Feed a recorded sample file through the sweep as fast as possible and
write the final screen as PNG and/or HTML.

Every --batch lines form one frame, standing in for the samples that
arrive between two display frames.

Examples:
  sweeptrace snapshot capture.csv --png capture.png
  sweeptrace snapshot capture.csv --config ward.yaml --html capture.html --batch 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (YAML or CUE)")
	cmd.Flags().IntVar(&opts.Batch, "batch", 4, "samples per frame")
	cmd.Flags().StringVar(&opts.PNG, "png", "", "PNG output path")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "HTML output path")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	if opts.PNG == "" && opts.HTML == "" {
		return NewExitError(ExitCommandError, "nothing to write: set --png and/or --html")
	}
	if opts.Batch <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--batch must be positive, got %d", opts.Batch))
	}

	cfg, errs := LoadConfig(opts.ConfigPath)
	if len(errs) > 0 {
		return configFailure(formatter, opts.ConfigPath, errs)
	}

	fh, err := os.Open(path)
	if err != nil {
		return commandFailure(formatter, ErrCodeSource, "failed to open samples", err)
	}
	defer fh.Close()

	engCfg := cfg.ToEngine()
	sweep, err := engine.NewSweep(engCfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create sweep", err)
	}
	scene := render.NewScene(cfg.Name, engCfg)

	result := SnapshotResult{PNG: opts.PNG, HTML: opts.HTML}
	var drawErr error
	sink := source.SinkFunc(func(batch []ir.Sample) bool {
		result.Samples += len(batch)
		frame, ok := sweep.Process(batch)
		if !ok {
			return true
		}
		result.Frames++
		switch frame.Outcome {
		case ir.OutcomeRollover:
			result.Rollovers++
		case ir.OutcomeOverflow:
			result.Overflows++
		}
		if err := engine.Apply(scene, frame, engCfg.MaxAppendChunk); err != nil {
			drawErr = err
			return false
		}
		return true
	})

	reader := source.NewLineReader(fh, source.WithBatchSize(opts.Batch))
	if err := reader.Run(cmd.Context(), sink); err != nil {
		return commandFailure(formatter, ErrCodeSource, "failed to read samples", err)
	}
	if drawErr != nil {
		return WrapExitError(ExitFailure, "failed to draw frame", drawErr)
	}
	result.Malformed = reader.Malformed()

	if err := exportSnapshot(scene.Snapshot(), opts.PNG, opts.HTML); err != nil {
		return commandFailure(formatter, ErrCodeExport, "failed to write snapshot", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Rendered %d samples in %d frames (%d rollovers, %d overflows)\n",
		result.Samples, result.Frames, result.Rollovers, result.Overflows)
	if result.Malformed > 0 {
		fmt.Fprintf(w, "  skipped %d malformed lines\n", result.Malformed)
	}
	for _, out := range []string{opts.PNG, opts.HTML} {
		if out != "" {
			fmt.Fprintf(w, "  wrote %s\n", out)
		}
	}
	return nil
}

// exportSnapshot writes whichever outputs have a path.
func exportSnapshot(snap render.Snapshot, pngPath, htmlPath string) error {
	if pngPath != "" {
		if err := render.SavePNG(pngPath, snap); err != nil {
			return err
		}
	}
	if htmlPath != "" {
		if err := render.SaveHTML(htmlPath, snap); err != nil {
			return err
		}
	}
	return nil
}
