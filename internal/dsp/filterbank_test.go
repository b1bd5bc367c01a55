// internal/dsp/filterbank_test.go
package dsp

import (
	"math"
	"math/rand/v2"
	"testing"
)

const (
	testSampleRate = 48000.0
	testChannels   = 8
	tolerance      = 1e-9
)

// generateTone creates a cosine at the given frequency
func generateTone(frequency, sampleRate float64, numSamples int, amplitude float64) []float32 {
	samples := make([]float32, numSamples)
	for i := range samples {
		samples[i] = float32(amplitude * math.Cos(2*math.Pi*frequency*float64(i)/sampleRate))
	}
	return samples
}

// generateNoise creates reproducible Gaussian noise of unit variance
func generateNoise(numSamples int, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	samples := make([]float32, numSamples)
	for i := range samples {
		samples[i] = float32(rng.NormFloat64())
	}
	return samples
}

func newTestFilterbank(t *testing.T, channels, integration int) *Filterbank {
	t.Helper()
	f, err := NewFilterbank(FilterbankConfig{
		SampleRate:  testSampleRate,
		Channels:    channels,
		Integration: integration,
	})
	if err != nil {
		t.Fatalf("NewFilterbank failed with valid config: %v", err)
	}
	return f
}

func TestNewFilterbank_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  FilterbankConfig
		want error
	}{
		{"zero channels", FilterbankConfig{SampleRate: testSampleRate, Channels: 0, Integration: 1}, ErrInvalidChannels},
		{"negative channels", FilterbankConfig{SampleRate: testSampleRate, Channels: -4, Integration: 1}, ErrInvalidChannels},
		{"zero sample rate", FilterbankConfig{SampleRate: 0, Channels: 8, Integration: 1}, ErrInvalidSampleRate},
		{"negative sample rate", FilterbankConfig{SampleRate: -1, Channels: 8, Integration: 1}, ErrInvalidSampleRate},
		{"zero integration", FilterbankConfig{SampleRate: testSampleRate, Channels: 8, Integration: 0}, ErrInvalidIntegration},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFilterbank(tc.cfg)
			if err != tc.want {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if f != nil {
				t.Error("expected nil filterbank with invalid config")
			}
		})
	}
}

func TestFilterbank_Geometry(t *testing.T) {
	f := newTestFilterbank(t, testChannels, 4)

	if got := f.SamplesPerSpectrum(); got != 64 {
		t.Errorf("SamplesPerSpectrum() = %d, want 64", got)
	}
	if got := f.Frequency(1); got != 3000 {
		t.Errorf("Frequency(1) = %v, want 3000", got)
	}
	if f.Config().Channels != testChannels {
		t.Errorf("Config().Channels = %d, want %d", f.Config().Channels, testChannels)
	}

	tests := []struct {
		freq float64
		want int
	}{
		{0, 0},
		{1400, 0},
		{1600, 1},
		{9000, 3},
		{21000, 7},
		{24000, 7},
		{-100, 0},
	}
	for _, tt := range tests {
		if got := f.Channel(tt.freq); got != tt.want {
			t.Errorf("Channel(%v) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestFilterbank_Spectrum_Silence(t *testing.T) {
	f := newTestFilterbank(t, testChannels, 2)
	out := make([]float64, testChannels)

	if err := f.Spectrum(make([]float32, f.SamplesPerSpectrum()), out); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	for c, p := range out {
		if p != 0 {
			t.Errorf("channel %d: expected 0 power for silence, got %v", c, p)
		}
	}
}

func TestFilterbank_Spectrum_ToneOnChannel(t *testing.T) {
	const amplitude = 0.5
	f := newTestFilterbank(t, testChannels, 3)
	out := make([]float64, testChannels)

	for channel := 1; channel < testChannels; channel++ {
		samples := generateTone(f.Frequency(channel), testSampleRate, f.SamplesPerSpectrum(), amplitude)
		if err := f.Spectrum(samples, out); err != nil {
			t.Fatalf("Spectrum failed: %v", err)
		}

		// A²·N/4 for a cosine on bin c, N = 2·channels
		want := amplitude * amplitude * float64(2*testChannels) / 4
		for c, p := range out {
			if c == channel {
				if math.Abs(p-want) > 1e-4 {
					t.Errorf("tone in channel %d: power %v, want %v", channel, p, want)
				}
			} else if p > 1e-4 {
				t.Errorf("tone in channel %d leaked %v into channel %d", channel, p, c)
			}
		}
	}
}

func TestFilterbank_Spectrum_DC(t *testing.T) {
	f := newTestFilterbank(t, testChannels, 1)
	samples := make([]float32, f.SamplesPerSpectrum())
	for i := range samples {
		samples[i] = 2
	}
	out := make([]float64, testChannels)
	if err := f.Spectrum(samples, out); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	if want := 4.0 * float64(2*testChannels); math.Abs(out[0]-want) > tolerance*want {
		t.Errorf("DC power = %v, want %v", out[0], want)
	}
}

func TestFilterbank_Spectrum_WhiteNoise(t *testing.T) {
	f := newTestFilterbank(t, 16, 256)
	out := make([]float64, 16)

	if err := f.Spectrum(generateNoise(f.SamplesPerSpectrum(), 3), out); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	for c, p := range out {
		if math.Abs(p-1) > 0.35 {
			t.Errorf("channel %d: noise power %v, want about 1", c, p)
		}
	}
}

func TestFilterbank_Spectrum_InsufficientSamples(t *testing.T) {
	f := newTestFilterbank(t, testChannels, 2)
	out := make([]float64, testChannels)

	if err := f.Spectrum(make([]float32, f.SamplesPerSpectrum()-1), out); err != ErrInsufficientSamples {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
	if err := f.Spectrum(make([]float32, f.SamplesPerSpectrum()), out[:testChannels-1]); err != ErrOutputTooShort {
		t.Errorf("expected ErrOutputTooShort, got %v", err)
	}
}

func TestFilterbank_Spectrum_ExtraSamples(t *testing.T) {
	f := newTestFilterbank(t, testChannels, 1)
	n := f.SamplesPerSpectrum()
	samples := generateTone(f.Frequency(2), testSampleRate, n, 1)
	samples = append(samples, make([]float32, n)...)
	for i := n; i < len(samples); i++ {
		samples[i] = 100
	}

	out := make([]float64, testChannels)
	if err := f.Spectrum(samples, out); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	if math.Abs(out[2]-4) > 1e-4 {
		t.Errorf("extra samples must be ignored: channel 2 power %v, want 4", out[2])
	}
}

func BenchmarkFilterbank_Spectrum(b *testing.B) {
	f, _ := NewFilterbank(FilterbankConfig{SampleRate: testSampleRate, Channels: 256, Integration: 4})
	samples := generateNoise(f.SamplesPerSpectrum(), 1)
	out := make([]float64, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Spectrum(samples, out)
	}
}
