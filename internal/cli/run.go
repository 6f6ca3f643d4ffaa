package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sweeptrace/internal/config"
	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/render"
	"github.com/roach88/sweeptrace/internal/source"
	"github.com/roach88/sweeptrace/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Database   string
	Name       string
	Source     string
	Path       string
	Baud       int
	FPS        int
	Duration   time.Duration
	PNG        string
	HTML       string

	// SessionGenerator allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionIDGenerator

	// NewClock allows overriding the display frame clock (for testing).
	// If nil, defaults to engine.NewIntervalClock.
	NewClock func(fps int) engine.FrameClock
}

// RunSummary is printed when the scope stops.
type RunSummary struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	SessionID string `json:"session_id,omitempty"`
	Frames    int64  `json:"frames"`
	Samples   int64  `json:"samples"`
	Rollovers int64  `json:"rollovers"`
	Overflows int64  `json:"overflows"`
	Errors    int64  `json:"errors"`
	PNG       string `json:"png,omitempty"`
	HTML      string `json:"html,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scope on a live source",
		Long: `Run the sweep scope on a live sample source until interrupted.

Samples come from the configured source: the built-in ECG simulator, a
recorded file (replayed in real time), a serial device or stdin. Lines
are "timestamp_ms,value". With --db every frame is recorded for replay;
--png and --html write a snapshot of the final screen on exit.

Examples:
  sweeptrace run
  sweeptrace run --config ward.yaml --db ./sweeptrace.db
  sweeptrace run --source serial --path /dev/ttyUSB0 --baud 115200
  sweeptrace run --source file --path capture.csv --png capture.png
  sweeptrace run --duration 30s --html last.html`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScope(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (YAML or CUE)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session into this SQLite database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "override config name")
	cmd.Flags().StringVar(&opts.Source, "source", "", "override source kind (ecg|file|serial|stdin)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "override source file or serial device")
	cmd.Flags().IntVar(&opts.Baud, "baud", 0, "override serial baud rate")
	cmd.Flags().IntVar(&opts.FPS, "fps", 0, "override display frame rate")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 = until interrupted)")
	cmd.Flags().StringVar(&opts.PNG, "png", "", "write a PNG snapshot on exit")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "write an HTML snapshot on exit")

	return cmd
}

// applyOverrides copies explicitly set flags onto the configuration.
func (o *RunOptions) applyOverrides(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = o.Name
	}
	if flags.Changed("source") {
		cfg.Source.Kind = o.Source
	}
	if flags.Changed("path") {
		cfg.Source.Path = o.Path
	}
	if flags.Changed("baud") {
		cfg.Source.Baud = o.Baud
	}
	if flags.Changed("fps") {
		cfg.FPS = o.FPS
	}
}

func runScope(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, errs := LoadConfig(opts.ConfigPath)
	if len(errs) > 0 {
		return configFailure(formatter, opts.ConfigPath, errs)
	}
	opts.applyOverrides(&cfg, cmd)
	if errs := CheckConfig(cfg); len(errs) > 0 {
		return configFailure(formatter, opts.ConfigPath, errs)
	}

	engCfg := cfg.ToEngine()
	sweep, err := engine.NewSweep(engCfg, engine.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create sweep", err)
	}
	scene := render.NewScene(cfg.Name, engCfg)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	scopeOpts := []engine.ScopeOption{engine.WithScopeLogger(logger)}

	var rec *store.Recorder
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return commandFailure(formatter, ErrCodeDatabase, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.SessionGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		rec, err = store.NewRecorder(ctx, st, store.Session{
			Name:   cfg.Name,
			Source: cfg.Source.Kind,
			Config: engCfg,
		}, gen)
		if err != nil {
			return commandFailure(formatter, ErrCodeDatabase, "failed to start recording", err)
		}
		scopeOpts = append(scopeOpts, engine.WithRecorder(rec))
		logger.Info("recording session", "session_id", rec.SessionID(), "db", opts.Database)
	}

	src, err := source.FromConfig(cfg.Source, cmd.InOrStdin(), logger)
	if err != nil {
		return commandFailure(formatter, ErrCodeSource, "failed to create source", err)
	}

	// The clock is stopped by Scope.Run; nothing may fail between here and Run.
	newClock := opts.NewClock
	if newClock == nil {
		newClock = func(fps int) engine.FrameClock { return engine.NewIntervalClock(fps) }
	}
	scopeOpts = append(scopeOpts, engine.WithFrameClock(newClock(cfg.FPS)))
	scope := engine.NewScope(sweep, scene, scopeOpts...)

	runErr := make(chan error, 1)
	go func() {
		runErr <- scope.Run(ctx)
	}()

	logger.Info("scope started",
		"name", cfg.Name,
		"source", cfg.Source.Kind,
		"window_ms", engCfg.WindowWidthMs,
		"fps", cfg.FPS,
	)
	srcErr := src.Run(ctx, scope)
	if srcErr == nil {
		// Input ended: let the last frames draw before tearing down.
		waitDrained(ctx, scope, cfg.FPS)
	}
	scope.Close()
	if err := <-runErr; err != nil && !isCancellation(err) {
		logger.Error("scope stopped with error", "error", err)
	}

	stats := scope.Stats()
	summary := RunSummary{
		Name:      cfg.Name,
		Source:    cfg.Source.Kind,
		Frames:    stats.Frames,
		Samples:   stats.Samples,
		Rollovers: stats.Rollovers,
		Overflows: stats.Overflows,
		Errors:    stats.Errors,
		PNG:       opts.PNG,
		HTML:      opts.HTML,
	}

	if rec != nil {
		summary.SessionID = rec.SessionID()
		// The run context may already be cancelled.
		if err := rec.Finish(context.Background()); err != nil {
			logger.Error("failed to finish session", "session_id", rec.SessionID(), "error", err)
		}
	}

	if err := exportSnapshot(scene.Snapshot(), opts.PNG, opts.HTML); err != nil {
		return commandFailure(formatter, ErrCodeExport, "failed to write snapshot", err)
	}

	if srcErr != nil && !isCancellation(srcErr) {
		return WrapExitError(ExitFailure, "source failed", srcErr)
	}

	if formatter.JSON() {
		return formatter.Success(summary)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scope stopped: %d frames, %d samples, %d rollovers, %d overflows\n",
		summary.Frames, summary.Samples, summary.Rollovers, summary.Overflows)
	if summary.Errors > 0 {
		fmt.Fprintf(w, "  %d frame errors (see log)\n", summary.Errors)
	}
	if summary.SessionID != "" {
		fmt.Fprintf(w, "  Session: %s\n", summary.SessionID)
	}
	return nil
}

// waitDrained blocks until the scope has consumed every pushed sample, for
// at most one second.
func waitDrained(ctx context.Context, scope *engine.Scope, fps int) {
	if fps <= 0 {
		fps = engine.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	deadline := time.After(time.Second)

	for scope.Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// configFailure reports configuration problems and returns the matching
// exit error.
func configFailure(f *OutputFormatter, path string, errs []error) error {
	details := make([]string, len(errs))
	for i, e := range errs {
		details[i] = e.Error()
	}

	code := ErrCodeGeneric
	var le *LoadError
	if errors.As(errs[0], &le) {
		code = le.Code
	}

	exitCode := ExitFailure
	if code == ErrCodeNotFound {
		exitCode = ExitCommandError
	}

	if f.JSON() {
		_ = f.Error(code, fmt.Sprintf("invalid configuration %s", path), details)
	} else {
		for _, d := range details {
			fmt.Fprintf(f.GetErrWriter(), "  %s\n", d)
		}
	}
	return NewExitError(exitCode, fmt.Sprintf("invalid configuration: %d problem(s)", len(errs)))
}
