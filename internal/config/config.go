// Package config loads and validates sweeptrace configuration files.
//
// A configuration is YAML (or CUE) describing the sweep window, the value
// range and the sample source. Files are checked against an embedded CUE
// schema and then against the engine's own rules; every problem found is
// reported, not just the first.
package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/sweeptrace/internal/engine"
)

// Source kinds.
const (
	SourceECG    = "ecg"
	SourceFile   = "file"
	SourceSerial = "serial"
	SourceStdin  = "stdin"
)

// Config is a complete sweeptrace configuration.
// Immutable once loaded; ToEngine derives the sweep configuration.
type Config struct {
	Name           string  `yaml:"name" json:"name"`
	WindowWidthMs  float64 `yaml:"window_width_ms" json:"window_width_ms"`
	ValueMin       float64 `yaml:"value_min" json:"value_min"`
	ValueMax       float64 `yaml:"value_max" json:"value_max"`
	LeadMargin     float64 `yaml:"lead_margin" json:"lead_margin"`
	MaxAppendChunk int     `yaml:"max_append_chunk" json:"max_append_chunk"`
	FPS            int     `yaml:"fps" json:"fps"`
	Source         Source  `yaml:"source" json:"source"`
}

// Source selects where samples come from.
type Source struct {
	Kind string `yaml:"kind" json:"kind"`

	// Path is the file or serial device; required for file and serial.
	Path string `yaml:"path" json:"path"`
	Baud int    `yaml:"baud" json:"baud"`

	// Simulator parameters, used by the ecg kind.
	HeartRateBPM float64 `yaml:"heart_rate_bpm" json:"heart_rate_bpm"`
	SampleRateHz float64 `yaml:"sample_rate_hz" json:"sample_rate_hz"`
	Amplitude    float64 `yaml:"amplitude" json:"amplitude"`
	Noise        float64 `yaml:"noise" json:"noise"`
	Seed         int64   `yaml:"seed" json:"seed"`
}

// Default returns the built-in configuration: a 14 second ECG sweep fed by
// the simulator. It matches the defaults of the CUE schema.
func Default() Config {
	eng := engine.DefaultConfig()
	return Config{
		Name:           "sweeptrace",
		WindowWidthMs:  eng.WindowWidthMs,
		ValueMin:       eng.ValueMin,
		ValueMax:       eng.ValueMax,
		LeadMargin:     eng.LeadMargin,
		MaxAppendChunk: eng.MaxAppendChunk,
		FPS:            engine.DefaultFPS,
		Source: Source{
			Kind:         SourceECG,
			Baud:         115200,
			HeartRateBPM: 72,
			SampleRateHz: 250,
			Amplitude:    1000,
			Seed:         1,
		},
	}
}

// ToEngine returns the sweep configuration.
func (c Config) ToEngine() engine.Config {
	return engine.Config{
		WindowWidthMs:  c.WindowWidthMs,
		ValueMin:       c.ValueMin,
		ValueMax:       c.ValueMax,
		LeadMargin:     c.LeadMargin,
		MaxAppendChunk: c.MaxAppendChunk,
	}
}

// Validate runs the checks the schema cannot express.
// All failures are collected into a *multierror.Error.
func (c Config) Validate() error {
	var result *multierror.Error

	if err := c.ToEngine().Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	switch c.Source.Kind {
	case SourceFile, SourceSerial:
		if c.Source.Path == "" {
			result = multierror.Append(result, &FieldError{
				Kind:    KindRule,
				Field:   "source.path",
				Message: fmt.Sprintf("required for source kind %q", c.Source.Kind),
			})
		}
	case SourceECG:
		// At least one simulated sample per display frame.
		if c.FPS > 0 && c.Source.SampleRateHz < float64(c.FPS) {
			result = multierror.Append(result, &FieldError{
				Kind:    KindRule,
				Field:   "source.sample_rate_hz",
				Message: fmt.Sprintf("%v Hz is below the %d fps frame rate", c.Source.SampleRateHz, c.FPS),
			})
		}
	}

	return result.ErrorOrNil()
}
