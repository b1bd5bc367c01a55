// internal/synth/synth.go
// Package synth generates reproducible time-frequency test data: Gaussian
// noise over a sloped bandpass, with RFI injected at known positions.
package synth

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ColonelBlimp/rfim/internal/dsp"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

var (
	// ErrInvalidShape indicates spectra and channels must be positive
	ErrInvalidShape = errors.New("number of spectra and channels must be positive")
	// ErrInvalidSigma indicates the noise sigma must be non-negative
	ErrInvalidSigma = errors.New("noise sigma must be non-negative")
)

// Config describes the noise generated for each block.
type Config struct {
	// Mean is the noise level of channel 0
	Mean float64
	// Sigma is the noise standard deviation
	Sigma float64
	// Slope is added per channel to the mean, modelling a tilted bandpass
	Slope float64
	// Seed makes the generated data reproducible
	Seed uint64
}

// DefaultConfig returns noise suitable for 8-bit samples.
func DefaultConfig() Config {
	return Config{Mean: 96, Sigma: 8, Slope: 0, Seed: 1}
}

// Generator produces noise blocks. Not safe for concurrent use.
type Generator struct {
	config Config
	normal distuv.Normal
}

// New creates a generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Sigma < 0 {
		return nil, ErrInvalidSigma
	}
	return &Generator{
		config: cfg,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: cfg.Sigma,
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed+1),
		},
	}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() Config { return g.config }

// Level returns the noise-free level of channel c.
func (g *Generator) Level(c int) float64 {
	return g.config.Mean + g.config.Slope*float64(c)
}

// levels returns the noise-free bandpass across n channels.
func (g *Generator) levels(n int) []float64 {
	l := make([]float64, n)
	if n == 1 {
		l[0] = g.Level(0)
		return l
	}
	return floats.Span(l, g.Level(0), g.Level(n-1))
}

// Scenario is a block together with the flags a perfect detector would raise.
type Scenario[T tf.Sample] struct {
	Block *tf.Block[T]
	Truth *tf.FlagGrid
}

// NewScenario fills a block of the given shape with noise from g.
func NewScenario[T tf.Sample](g *Generator, nspectra, nchannels int) (*Scenario[T], error) {
	if nspectra <= 0 || nchannels <= 0 {
		return nil, ErrInvalidShape
	}
	b := tf.NewBlock[T](nspectra, nchannels)
	levels := g.levels(nchannels)
	for s := 0; s < nspectra; s++ {
		spec := b.Spectrum(s)
		for c := range spec {
			spec[c] = tf.Convert[T](levels[c] + g.normal.Rand())
		}
	}
	return &Scenario[T]{Block: b, Truth: tf.NewFlagGridFor(b)}, nil
}

// Tone is a continuous-wave transmitter in the voltage stream.
type Tone struct {
	Frequency float64 // Hz, moved to the nearest channel centre
	Amplitude float64 // peak voltage
}

// NewChannelisedScenario draws Gaussian voltage noise of variance Sigma²,
// adds the tones and channelises the stream with fb. Channel c of every
// spectrum holds Level(c) plus the deviation of its power from Sigma², so a
// clean block sits on the same bandpass as NewScenario. Every tone channel is
// marked in Truth.
func NewChannelisedScenario[T tf.Sample](g *Generator, fb *dsp.Filterbank, nspectra int, tones ...Tone) (*Scenario[T], error) {
	nchannels := fb.Config().Channels
	if nspectra <= 0 {
		return nil, ErrInvalidShape
	}

	b := tf.NewBlock[T](nspectra, nchannels)
	truth := tf.NewFlagGridFor(b)
	omegas := make([]float64, len(tones))
	for i, tone := range tones {
		c := fb.Channel(tone.Frequency)
		omegas[i] = 2 * math.Pi * fb.Frequency(c) / fb.Config().SampleRate
		for s := 0; s < nspectra; s++ {
			truth.Set(s, c, true)
		}
	}

	levels := g.levels(nchannels)
	noisePower := g.config.Sigma * g.config.Sigma
	voltage := make([]float32, fb.SamplesPerSpectrum())
	power := make([]float64, nchannels)
	n := 0
	for s := 0; s < nspectra; s++ {
		for i := range voltage {
			v := g.normal.Rand()
			for j, tone := range tones {
				v += tone.Amplitude * math.Cos(omegas[j]*float64(n))
			}
			voltage[i] = float32(v)
			n++
		}
		if err := fb.Spectrum(voltage, power); err != nil {
			return nil, err
		}
		spec := b.Spectrum(s)
		for c := range spec {
			spec[c] = tf.Convert[T](levels[c] + power[c] - noisePower)
		}
	}
	return &Scenario[T]{Block: b, Truth: truth}, nil
}

// InjectSpike adds amplitude to one sample.
func (sc *Scenario[T]) InjectSpike(s, c int, amplitude float64) {
	sc.add(s, c, amplitude)
}

// InjectChannel adds amplitude to channel c in every spectrum (narrowband RFI).
func (sc *Scenario[T]) InjectChannel(c int, amplitude float64) {
	for s := 0; s < sc.Block.NumberOfSpectra(); s++ {
		sc.add(s, c, amplitude)
	}
}

// InjectSpectrum adds amplitude to every channel of spectrum s (broadband RFI).
func (sc *Scenario[T]) InjectSpectrum(s int, amplitude float64) {
	for c := 0; c < sc.Block.NumberOfChannels(); c++ {
		sc.add(s, c, amplitude)
	}
}

// InjectBurst adds amplitude to channel c for spectra [from, to).
func (sc *Scenario[T]) InjectBurst(c, from, to int, amplitude float64) {
	for s := max(from, 0); s < min(to, sc.Block.NumberOfSpectra()); s++ {
		sc.add(s, c, amplitude)
	}
}

func (sc *Scenario[T]) add(s, c int, amplitude float64) {
	sc.Block.Set(s, c, tf.Convert[T](float64(sc.Block.At(s, c))+amplitude))
	sc.Truth.Set(s, c, true)
}
