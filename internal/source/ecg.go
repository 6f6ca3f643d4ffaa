package source

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/roach88/sweeptrace/internal/ir"
)

// ECGConfig parameterizes the simulator.
type ECGConfig struct {
	SampleRateHz float64
	HeartRateBPM float64
	Amplitude    float64 // peak of the R wave
	Noise        float64 // uniform noise, as a fraction of Amplitude
	Seed         uint64

	// BatchInterval is how often Run emits the samples elapsed so far.
	BatchInterval time.Duration
}

// DefaultECGConfig returns a 72 bpm trace sampled at 250 Hz.
func DefaultECGConfig() ECGConfig {
	return ECGConfig{
		SampleRateHz:  250,
		HeartRateBPM:  72,
		Amplitude:     1000,
		Seed:          1,
		BatchInterval: 20 * time.Millisecond,
	}
}

// wave is one gaussian component of a heartbeat, placed by its position
// in the beat cycle [0, 1).
type wave struct {
	gain, center, width float64
}

// P wave, QRS complex and T wave.
var beat = []wave{
	{0.08, 0.18, 0.03},
	{-0.12, 0.30, 0.01},
	{1.00, 0.32, 0.008},
	{-0.25, 0.35, 0.012},
	{0.25, 0.60, 0.06},
}

// ECG is a synthetic, non-clinical electrocardiogram.
// Values are a pure function of time plus seeded noise, so a given
// configuration always produces the same trace.
type ECG struct {
	cfg ECGConfig
	rng *rand.Rand
	now func() time.Time
}

// NewECG creates a simulator. Zero fields take DefaultECGConfig values.
func NewECG(cfg ECGConfig) *ECG {
	def := DefaultECGConfig()
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = def.SampleRateHz
	}
	if cfg.HeartRateBPM <= 0 {
		cfg.HeartRateBPM = def.HeartRateBPM
	}
	if cfg.Amplitude <= 0 {
		cfg.Amplitude = def.Amplitude
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = def.BatchInterval
	}
	return &ECG{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// Value returns the noise-free signal at t milliseconds.
func (e *ECG) Value(tMs float64) float64 {
	cycleMs := 60000 / e.cfg.HeartRateBPM
	phase := math.Mod(tMs, cycleMs) / cycleMs
	if phase < 0 {
		phase++
	}

	// Slow respiratory baseline wander.
	v := 0.05 * math.Sin(2*math.Pi*0.25*tMs/1000)
	for _, w := range beat {
		z := (phase - w.center) / w.width
		v += w.gain * math.Exp(-0.5*z*z)
	}
	return v * e.cfg.Amplitude
}

// Generate returns n consecutive samples starting at sample index first.
func (e *ECG) Generate(first, n int) []ir.Sample {
	period := 1000 / e.cfg.SampleRateHz
	out := make([]ir.Sample, n)
	for i := range out {
		t := float64(first+i) * period
		v := e.Value(t)
		if e.cfg.Noise > 0 {
			v += e.cfg.Noise * e.cfg.Amplitude * (2*e.rng.Float64() - 1)
		}
		out[i] = ir.Sample{TimestampMs: t, Value: v}
	}
	return out
}

// Run implements Source. Timestamps start at zero when Run is called and
// follow the wall clock; each tick emits every sample that has come due.
func (e *ECG) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(e.cfg.BatchInterval)
	defer ticker.Stop()

	start := e.now()
	next := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		elapsed := e.now().Sub(start).Seconds()
		due := int(elapsed * e.cfg.SampleRateHz)
		if due <= next {
			continue
		}
		if !sink.PushBatch(e.Generate(next, due-next)) {
			return nil
		}
		next = due
	}
}
