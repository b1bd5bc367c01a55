package rfim

import (
	"testing"

	"github.com/ColonelBlimp/rfim/internal/monitoring"
	"github.com/ColonelBlimp/rfim/internal/synth"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

// newNoiseBlock returns a block of Gaussian noise with the given statistics.
func newNoiseBlock[T tf.Sample](t *testing.T, nspectra, nchannels int, mean, sigma float64, seed uint64) *tf.Block[T] {
	t.Helper()
	return newScenario[T](t, nspectra, nchannels, mean, sigma, seed).Block
}

func newScenario[T tf.Sample](t *testing.T, nspectra, nchannels int, mean, sigma float64, seed uint64) *synth.Scenario[T] {
	t.Helper()
	g, err := synth.New(synth.Config{Mean: mean, Sigma: sigma, Seed: seed})
	if err != nil {
		t.Fatalf("synth.New() error = %v", err)
	}
	sc, err := synth.NewScenario[T](g, nspectra, nchannels)
	if err != nil {
		t.Fatalf("synth.NewScenario() error = %v", err)
	}
	return sc
}

// recordingAdapter counts every call and remembers the bad verdicts.
type recordingAdapter struct {
	calls       int
	bad         [][2]int
	badChannels []int
	badSpectra  []int
	goodSpectra []int
	mean, rms   float64
	updates     int
}

func (r *recordingAdapter) MarkGood(int, int)   { r.calls++ }
func (r *recordingAdapter) MarkGoodChannel(int) { r.calls++ }

func (r *recordingAdapter) MarkGoodSpectrum(s int) {
	r.calls++
	r.goodSpectra = append(r.goodSpectra, s)
}

func (r *recordingAdapter) MarkBad(s, c int) {
	r.calls++
	r.bad = append(r.bad, [2]int{s, c})
}

func (r *recordingAdapter) MarkBadChannel(c int) {
	r.calls++
	r.badChannels = append(r.badChannels, c)
}

func (r *recordingAdapter) MarkBadSpectrum(s int) {
	r.calls++
	r.badSpectra = append(r.badSpectra, s)
}

func (r *recordingAdapter) UpdateStats(mean, rms float64) {
	r.updates++
	r.mean, r.rms = mean, rms
}

// observerFunc adapts a function to the Observer interface.
type observerFunc func(rep monitoring.BlockReport)

func (f observerFunc) ObserveBlock(rep monitoring.BlockReport) { f(rep) }
