package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/sweeptrace/internal/ir"
)

// DefaultLineBatch is how many parsed lines are pushed together when the
// reader is not pacing.
const DefaultLineBatch = 64

// LineError reports a line that could not be parsed.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseLine parses one "timestamp,value" record. Fields may be separated by
// a comma, a semicolon or whitespace. The timestamp is in milliseconds.
// "NaN" and "Inf" are accepted and left for the engine to handle.
func ParseLine(line string) (ir.Sample, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return ir.Sample{}, fmt.Errorf("want 2 fields, got %d", len(fields))
	}
	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return ir.Sample{}, fmt.Errorf("timestamp: %w", err)
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ir.Sample{}, fmt.Errorf("value: %w", err)
	}
	return ir.Sample{TimestampMs: t, Value: v}, nil
}

// LineReader reads line-oriented samples from a file, pipe or serial port.
// Blank lines and lines starting with '#' are skipped. Malformed lines are
// logged and counted; they never stop the stream.
type LineReader struct {
	r      io.Reader
	batch  int
	pace   bool
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	malformed int
}

// LineOption configures a LineReader.
type LineOption func(*LineReader)

// WithBatchSize sets how many lines are pushed at once when not pacing.
func WithBatchSize(n int) LineOption {
	return func(l *LineReader) {
		if n > 0 {
			l.batch = n
		}
	}
}

// WithPacing replays recorded timestamps in real time: each sample is
// pushed when its offset from the first sample has elapsed. Without pacing
// a long file arrives in one burst and overflows the sweep.
func WithPacing(on bool) LineOption {
	return func(l *LineReader) {
		l.pace = on
	}
}

// WithLineLogger sets the logger for malformed lines.
func WithLineLogger(logger *slog.Logger) LineOption {
	return func(l *LineReader) {
		l.logger = logger
	}
}

// NewLineReader creates a reader over r.
func NewLineReader(r io.Reader, opts ...LineOption) *LineReader {
	l := &LineReader{
		r:      r,
		batch:  DefaultLineBatch,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Malformed returns how many lines were skipped as unparseable.
func (l *LineReader) Malformed() int {
	return l.malformed
}

// Run implements Source. It returns nil at end of input.
func (l *LineReader) Run(ctx context.Context, sink Sink) error {
	sc := bufio.NewScanner(l.r)
	pending := make([]ir.Sample, 0, l.batch)

	flush := func() bool {
		if len(pending) == 0 {
			return true
		}
		ok := sink.PushBatch(pending)
		pending = make([]ir.Sample, 0, l.batch)
		return ok
	}

	var (
		lineNo  int
		firstTs float64
		started time.Time
		seen    bool
	)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		s, err := ParseLine(text)
		if err != nil {
			l.malformed++
			l.logger.Warn("skipping malformed line", "error", &LineError{Line: lineNo, Text: text, Err: err})
			continue
		}

		if !l.pace {
			pending = append(pending, s)
			if len(pending) >= l.batch && !flush() {
				return nil
			}
			continue
		}

		if !seen {
			firstTs, started, seen = s.TimestampMs, time.Now(), true
		}
		offset := time.Duration((s.TimestampMs - firstTs) * float64(time.Millisecond))
		if wait := offset - time.Since(started); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		if !sink.PushBatch([]ir.Sample{s}) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read samples: %w", err)
	}
	flush()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
