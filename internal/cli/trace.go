package cli

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/queryir"
	"github.com/roach88/sweeptrace/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - list sessions when empty
	Outcome   string // optional - filter frames by outcome
	FromSeq   int64
	ToSeq     int64
	Limit     int
}

// SessionSummary describes one recorded session.
type SessionSummary struct {
	SessionID string  `json:"session_id"`
	Name      string  `json:"name"`
	Source    string  `json:"source"`
	WindowMs  float64 `json:"window_ms"`
	Frames    int     `json:"frames"`
	Samples   int     `json:"samples"`
	Rollovers int     `json:"rollovers"`
	Overflows int     `json:"overflows"`
	Dropped   int     `json:"dropped"`
	Gaps      []int64 `json:"gaps,omitempty"`
	Ended     bool    `json:"ended"`
}

// TraceEvent represents a single frame in the trace timeline.
type TraceEvent struct {
	Seq       int64      `json:"seq"`
	Outcome   ir.Outcome `json:"outcome"`
	Rollovers int        `json:"rollovers"`
	Pen       float64    `json:"pen"`
	Samples   int        `json:"samples"`
	Dropped   int        `json:"dropped,omitempty"`
	FirstMs   *float64   `json:"first_ms,omitempty"`
	LastMs    *float64   `json:"last_ms,omitempty"`
	Frame     string     `json:"frame,omitempty"` // canonical JSON, verbose only
}

// TraceResult holds the trace of one session.
type TraceResult struct {
	Session  SessionSummary `json:"session"`
	Timeline []TraceEvent   `json:"timeline"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded sessions",
		Long: `Inspect sessions recorded with "run --db".

Without --session, lists every session with its frame statistics.
With --session, prints the frame timeline of that session: one line
per frame with its outcome, pen position and batch size.

Examples:
  sweeptrace trace --db ./sweeptrace.db
  sweeptrace trace --db ./sweeptrace.db --session 0190...
  sweeptrace trace --db ./sweeptrace.db --session 0190... --outcome overflow
  sweeptrace trace --db ./sweeptrace.db --session 0190... --from 100 --limit 20
  sweeptrace trace --db ./sweeptrace.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to trace")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only frames with this outcome (continue|rollover|overflow)")
	cmd.Flags().Int64Var(&opts.FromSeq, "from", 0, "first frame seq to show")
	cmd.Flags().Int64Var(&opts.ToSeq, "to", 0, "last frame seq to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many frames (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	query, filtered := opts.query()
	if err := queryir.Validate(query); err != nil {
		return commandFailure(formatter, ErrCodeGeneric, "invalid frame filter", err)
	}
	if filtered && opts.SessionID == "" {
		return commandFailure(formatter, ErrCodeGeneric, "frame filters require --session", nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandFailure(formatter, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	if opts.SessionID == "" {
		return listSessions(ctx, st, formatter)
	}

	state, err := st.GetSessionState(ctx, opts.SessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return commandFailure(formatter, ErrCodeSession, fmt.Sprintf("session not found: %s", opts.SessionID), err)
	}
	if err != nil {
		return commandFailure(formatter, ErrCodeDatabase, "failed to read session", err)
	}

	records, err := st.QueryFrames(ctx, opts.SessionID, query)
	if err != nil {
		return commandFailure(formatter, ErrCodeDatabase, "failed to read frames", err)
	}

	result := TraceResult{
		Session:  summarize(state),
		Timeline: buildTimeline(records, opts.Verbose),
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(cmd, result)
}

// query builds the frame query from the filter flags and reports whether
// any filter was set.
func (o *TraceOptions) query() (queryir.Select, bool) {
	var outcome queryir.Predicate
	if o.Outcome != "" {
		outcome = queryir.OutcomeIs(ir.Outcome(o.Outcome))
	}
	q := queryir.Select{
		Filter: queryir.Where(outcome, queryir.SeqRange(o.FromSeq, o.ToSeq)),
		Limit:  o.Limit,
	}
	return q, q.Filter != nil || q.Limit != 0
}

// listSessions prints one summary per recorded session.
func listSessions(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return commandFailure(f, ErrCodeDatabase, "failed to list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		state, err := st.GetSessionState(ctx, sess.ID)
		if err != nil {
			return commandFailure(f, ErrCodeDatabase, fmt.Sprintf("failed to read session %s", sess.ID), err)
		}
		summaries = append(summaries, summarize(state))
	}

	if f.JSON() {
		return f.Success(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(f.Writer, "No sessions found in database.")
		return nil
	}
	for _, s := range summaries {
		status := "ended"
		if !s.Ended {
			status = "incomplete"
		}
		fmt.Fprintf(f.Writer, "%s  %-16s %-7s %6d frames %8d samples %4d rollovers %4d overflows  %s\n",
			s.SessionID, s.Name, s.Source, s.Frames, s.Samples, s.Rollovers, s.Overflows, status)
	}
	return nil
}

func summarize(state store.SessionState) SessionSummary {
	return SessionSummary{
		SessionID: state.Session.ID,
		Name:      state.Session.Name,
		Source:    state.Session.Source,
		WindowMs:  state.Session.Config.WindowWidthMs,
		Frames:    state.Frames,
		Samples:   state.Samples,
		Rollovers: state.Rollovers,
		Overflows: state.Overflows,
		Dropped:   state.Dropped,
		Gaps:      state.Gaps,
		Ended:     state.Session.Ended,
	}
}

// buildTimeline converts frame records to timeline events. The batch time
// span ignores non-finite timestamps, which the sweep drops.
func buildTimeline(records []store.FrameRecord, withFrames bool) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(records))
	for _, rec := range records {
		ev := TraceEvent{
			Seq:       rec.Seq,
			Outcome:   rec.Outcome,
			Rollovers: rec.Rollovers,
			Pen:       rec.Pen,
			Samples:   len(rec.Samples),
			Dropped:   rec.Dropped,
		}
		for _, s := range rec.Samples {
			if math.IsNaN(s.TimestampMs) || math.IsInf(s.TimestampMs, 0) {
				continue
			}
			t := s.TimestampMs
			if ev.FirstMs == nil {
				ev.FirstMs = &t
			}
			ev.LastMs = &t
		}
		if withFrames {
			ev.Frame = rec.Frame
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

// outputTraceText outputs the trace as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()
	s := result.Session

	fmt.Fprintf(w, "Session: %s (%s, source %s)\n", s.SessionID, s.Name, s.Source)
	fmt.Fprintf(w, "Window: %gms  Frames: %d  Samples: %d  Rollovers: %d  Overflows: %d\n",
		s.WindowMs, s.Frames, s.Samples, s.Rollovers, s.Overflows)
	if s.Dropped > 0 {
		fmt.Fprintf(w, "Dropped: %d non-finite timestamps\n", s.Dropped)
	}
	if len(s.Gaps) > 0 {
		fmt.Fprintf(w, "Warning: missing frames %v\n", s.Gaps)
	}
	if !s.Ended {
		fmt.Fprintln(w, "Note: session was never ended")
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No frames.")
		return nil
	}

	fmt.Fprintln(w, "Timeline:")
	for _, ev := range result.Timeline {
		marker := "  "
		switch ev.Outcome {
		case ir.OutcomeRollover:
			marker = "↻ "
		case ir.OutcomeOverflow:
			marker = "⚠ "
		}
		span := ""
		if ev.FirstMs != nil {
			span = fmt.Sprintf("  t=%g..%g", *ev.FirstMs, *ev.LastMs)
		}
		fmt.Fprintf(w, "%s[%d] %-8s pen=%-10g samples=%d%s\n", marker, ev.Seq, ev.Outcome, ev.Pen, ev.Samples, span)
		if ev.Rollovers > 1 {
			fmt.Fprintf(w, "    %d sweeps elapsed in one batch\n", ev.Rollovers)
		}
		if ev.Dropped > 0 {
			fmt.Fprintf(w, "    dropped %d samples\n", ev.Dropped)
		}
		if ev.Frame != "" {
			fmt.Fprintf(w, "    %s\n", ev.Frame)
		}
	}
	return nil
}
