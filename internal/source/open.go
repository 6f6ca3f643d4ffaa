package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/sweeptrace/internal/config"
)

// File streams a recorded sample file, paced in real time.
type File struct {
	Path string
	Opts []LineOption
}

// Run implements Source.
func (f *File) Run(ctx context.Context, sink Sink) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open samples: %w", err)
	}
	defer fh.Close()
	opts := append([]LineOption{WithPacing(true)}, f.Opts...)
	return NewLineReader(fh, opts...).Run(ctx, sink)
}

// FromConfig builds the source described by a configuration.
// stdin is used for the stdin kind.
func FromConfig(src config.Source, stdin io.Reader, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	lineOpts := []LineOption{WithLineLogger(logger)}

	switch src.Kind {
	case config.SourceECG, "":
		return NewECG(ECGConfig{
			SampleRateHz: src.SampleRateHz,
			HeartRateBPM: src.HeartRateBPM,
			Amplitude:    src.Amplitude,
			Noise:        src.Noise,
			Seed:         uint64(src.Seed),
		}), nil
	case config.SourceFile:
		return &File{Path: src.Path, Opts: lineOpts}, nil
	case config.SourceSerial:
		return &Serial{Path: src.Path, Baud: src.Baud, Opts: lineOpts}, nil
	case config.SourceStdin:
		return NewLineReader(stdin, lineOpts...), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}
