// internal/dsp/filterbank.go
// Package dsp turns a real-valued voltage stream into power spectra.
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidChannels indicates the channel count must be positive
	ErrInvalidChannels = errors.New("number of channels must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidIntegration indicates the integration length must be positive
	ErrInvalidIntegration = errors.New("integration must be positive")
	// ErrInsufficientSamples indicates not enough samples for one spectrum
	ErrInsufficientSamples = errors.New("insufficient samples for one spectrum")
	// ErrOutputTooShort indicates the output slice cannot hold every channel
	ErrOutputTooShort = errors.New("output shorter than number of channels")
)

// FilterbankConfig holds configuration for the Goertzel filterbank.
type FilterbankConfig struct {
	// SampleRate is the voltage sample rate in Hz
	SampleRate float64
	// Channels is the number of output channels, spanning 0 to Nyquist
	Channels int
	// Integration is the number of sub-spectra averaged into one spectrum
	Integration int
}

// Filterbank computes one Goertzel bin per channel. Every sub-spectrum spans
// 2*Channels samples, so channel c sits exactly on DFT bin c and a tone at
// Frequency(c) does not leak into its neighbours.
type Filterbank struct {
	config       FilterbankConfig
	window       int       // samples per sub-spectrum
	coefficients []float64 // Pre-computed: 2 * cos(2π * c / window)
}

// NewFilterbank creates a filterbank with the given configuration.
func NewFilterbank(cfg FilterbankConfig) (*Filterbank, error) {
	if cfg.Channels <= 0 {
		return nil, ErrInvalidChannels
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Integration <= 0 {
		return nil, ErrInvalidIntegration
	}

	window := 2 * cfg.Channels
	coefficients := make([]float64, cfg.Channels)
	for c := range coefficients {
		coefficients[c] = 2.0 * math.Cos(2.0*math.Pi*float64(c)/float64(window))
	}
	return &Filterbank{config: cfg, window: window, coefficients: coefficients}, nil
}

// Config returns the filterbank configuration
func (f *Filterbank) Config() FilterbankConfig {
	return f.config
}

// SamplesPerSpectrum returns the number of voltage samples consumed per spectrum
func (f *Filterbank) SamplesPerSpectrum() int {
	return f.window * f.config.Integration
}

// Frequency returns the centre frequency of channel c in Hz.
func (f *Filterbank) Frequency(c int) float64 {
	return float64(c) * f.config.SampleRate / float64(f.window)
}

// Channel returns the channel nearest to freq, clamped to the band.
func (f *Filterbank) Channel(freq float64) int {
	c := int(math.Round(freq * float64(f.window) / f.config.SampleRate))
	return min(max(c, 0), f.config.Channels-1)
}

// Spectrum writes the power of every channel into out, averaged over the
// configured number of sub-spectra. Power is normalised so that white noise
// of variance σ² yields σ² in every channel.
func (f *Filterbank) Spectrum(samples []float32, out []float64) error {
	if len(samples) < f.SamplesPerSpectrum() {
		return ErrInsufficientSamples
	}
	if len(out) < f.config.Channels {
		return ErrOutputTooShort
	}

	scale := 1.0 / float64(f.window*f.config.Integration)
	for c, coeff := range f.coefficients {
		var sum float64
		for i := 0; i < f.config.Integration; i++ {
			sum += power(samples[i*f.window:(i+1)*f.window], coeff)
		}
		out[c] = sum * scale
	}
	return nil
}

// power runs the Goertzel recursion over samples and returns |X|².
func power(samples []float32, coeff float64) float64 {
	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = float64(x) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	p := s1*s1 + s2*s2 - coeff*s1*s2
	// Guard against floating point errors causing negative values
	if p < 0 {
		p = 0
	}
	return p
}
