package cli

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/render"
	"github.com/roach88/sweeptrace/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
	PNG       string
	HTML      string
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string   `json:"session_id"`
	Name          string   `json:"name"`
	Recorded      int      `json:"recorded"`
	Replayed      int      `json:"replayed"`
	Ended         bool     `json:"ended"`
	Deterministic bool     `json:"deterministic"`
	Mismatches    []int64  `json:"mismatches,omitempty"`
	Diffs         []string `json:"diffs,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and verify determinism",
		Long: `Feed every recorded batch back through a fresh sweep built from the
recorded configuration and compare each frame digest with the recording.

With --session, --png and --html redraw the recorded frames and write
the final screen.

Exit codes:
  0 - All sessions replay identically
  1 - At least one frame differs from its recording
  2 - Command error (database not found, gaps in the recording, etc.)

Examples:
  sweeptrace replay --db ./sweeptrace.db
  sweeptrace replay --db ./sweeptrace.db --session 0190... --png session.png
  sweeptrace replay --db ./sweeptrace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")
	cmd.Flags().StringVar(&opts.PNG, "png", "", "write a PNG of the recorded session (requires --session)")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "write an HTML page of the recorded session (requires --session)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	if (opts.PNG != "" || opts.HTML != "") && opts.SessionID == "" {
		return commandFailure(formatter, ErrCodeGeneric, "--png and --html require --session", nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandFailure(formatter, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	var ids []string
	if opts.SessionID != "" {
		ids = []string{opts.SessionID}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return commandFailure(formatter, ErrCodeDatabase, "failed to list sessions", err)
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(ids)),
		TotalSessions:    len(ids),
		AllDeterministic: true,
	}

	if len(ids) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
		return nil
	}

	for _, id := range ids {
		sessResult, err := replaySession(ctx, st, id)
		if err != nil {
			return commandFailure(formatter, ErrCodeSession, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, sessResult)
		if !sessResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.SessionID != "" {
		if err := redrawSession(ctx, st, opts.SessionID, opts.PNG, opts.HTML); err != nil {
			return commandFailure(formatter, ErrCodeExport, "failed to write snapshot", err)
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replaySession replays one session and diffs every mismatching frame.
func replaySession(ctx context.Context, st *store.Store, id string) (ReplaySessionResult, error) {
	state, err := st.GetSessionState(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	rr, err := st.Replay(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	res := ReplaySessionResult{
		SessionID:     id,
		Name:          state.Session.Name,
		Recorded:      state.Frames,
		Replayed:      rr.Frames,
		Ended:         state.Session.Ended,
		Deterministic: rr.OK(),
	}
	for _, m := range rr.Mismatches {
		res.Mismatches = append(res.Mismatches, m.Seq)
		recorded, err := store.UnmarshalFrame(m.Recorded.Frame)
		if err != nil {
			res.Diffs = append(res.Diffs, fmt.Sprintf("seq=%d: recorded frame unreadable: %v", m.Seq, err))
			continue
		}
		diff := cmp.Diff(recorded, m.Replayed, cmpopts.EquateNaNs(), cmpopts.EquateEmpty())
		res.Diffs = append(res.Diffs, fmt.Sprintf("seq=%d (-recorded +replayed):\n%s", m.Seq, diff))
	}
	return res, nil
}

// redrawSession draws the recorded frames of a session and exports them.
func redrawSession(ctx context.Context, st *store.Store, id, pngPath, htmlPath string) error {
	if pngPath == "" && htmlPath == "" {
		return nil
	}

	sess, err := st.ReadSession(ctx, id)
	if err != nil {
		return err
	}
	records, err := st.ReadFrames(ctx, id)
	if err != nil {
		return err
	}

	scene := render.NewScene(sess.Name, sess.Config)
	for _, rec := range records {
		frame, err := store.UnmarshalFrame(rec.Frame)
		if err != nil {
			return fmt.Errorf("seq=%d: %w", rec.Seq, err)
		}
		if err := engine.Apply(scene, frame, sess.Config.MaxAppendChunk); err != nil {
			return err
		}
	}
	return exportSnapshot(scene.Snapshot(), pngPath, htmlPath)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	var failed *CLIError
	if !result.AllDeterministic {
		failed = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}
	if err := f.Result(result, failed); err != nil {
		return err
	}
	if failed != nil {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s (%s)\n", status, s.SessionID, s.Name)
		fmt.Fprintf(w, "  Frames: %d recorded, %d replayed\n", s.Recorded, s.Replayed)
		if !s.Ended {
			fmt.Fprintln(w, "  Note: session was never ended")
		}

		if !s.Deterministic {
			fmt.Fprintf(w, "  Warning: %d frame(s) differ: %v\n", len(s.Mismatches), s.Mismatches)
			if verbose {
				for _, d := range s.Diffs {
					fmt.Fprintf(w, "  %s\n", d)
				}
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
