package rfim

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// NoiseRingSize is the number of pre-computed noise samples held by a NoiseGenerator.
const NoiseRingSize = 8192

// NewSource returns a deterministic PRNG source for seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// NoiseGenerator hands out Gaussian noise from a finite, pre-computed ring.
// The ring is regenerated after each Reseed, on the first draw that follows,
// so consecutive reseeds cost nothing. Next is allocation free.
type NoiseGenerator struct {
	dist    distuv.Normal
	ring    [NoiseRingSize]float64
	cursor  int
	current float64
	mean    float64
	rms     float64
	stale   bool // ring does not yet hold draws for mean/rms
}

// NewNoiseGenerator creates a generator drawing from src. It yields zeros,
// Normal(0, 0), until Reseed is called.
func NewNoiseGenerator(src rand.Source) *NoiseGenerator {
	if src == nil {
		src = NewSource(0)
	}
	return &NoiseGenerator{dist: distuv.Normal{Src: src}}
}

// Reseed switches the generator to Normal(mean, rms) and rewinds the cursor.
// A negative or NaN rms is treated as zero.
func (g *NoiseGenerator) Reseed(mean, rms float64) {
	if math.IsNaN(rms) || rms < 0 {
		rms = 0
	}
	if math.IsNaN(mean) {
		mean = 0
	}
	g.mean, g.rms = mean, rms
	g.dist.Mu, g.dist.Sigma = mean, rms
	g.stale = true
}

func (g *NoiseGenerator) fill() {
	for i := range g.ring {
		g.ring[i] = g.dist.Rand()
	}
	g.cursor = 0
	g.current = g.ring[0]
	g.stale = false
}

// Current returns the sample Next would return, without advancing.
func (g *NoiseGenerator) Current() float64 {
	if g.stale {
		g.fill()
	}
	return g.current
}

// Next returns the current sample and advances, wrapping at NoiseRingSize.
func (g *NoiseGenerator) Next() float64 {
	if g.stale {
		g.fill()
	}
	v := g.current
	g.cursor++
	if g.cursor == NoiseRingSize {
		g.cursor = 0
	}
	g.current = g.ring[g.cursor]
	return v
}

// Mean returns the mean the ring was last seeded with
func (g *NoiseGenerator) Mean() float64 { return g.mean }

// RMS returns the standard deviation the ring was last seeded with
func (g *NoiseGenerator) RMS() float64 { return g.rms }

// FlaggedDataReplacer produces replacement samples statistically matched to a
// reference block.
type FlaggedDataReplacer[T tf.Sample] struct {
	noise *NoiseGenerator
}

// NewFlaggedDataReplacer seeds a replacer from the mean and RMS of ref.
func NewFlaggedDataReplacer[T tf.Sample](ref *tf.Block[T], src rand.Source) *FlaggedDataReplacer[T] {
	r := &FlaggedDataReplacer[T]{noise: NewNoiseGenerator(src)}
	r.UpdateStats(ref)
	return r
}

// UpdateStats reseeds the replacer from the statistics of ref.
func (r *FlaggedDataReplacer[T]) UpdateStats(ref *tf.Block[T]) {
	s := tf.BlockStats(ref)
	r.noise.Reseed(s.Mean, s.StdDev)
}

// Reseed reseeds the replacer from explicit statistics.
func (r *FlaggedDataReplacer[T]) Reseed(mean, rms float64) {
	r.noise.Reseed(mean, rms)
}

// Next returns the next replacement sample.
func (r *FlaggedDataReplacer[T]) Next() T {
	return tf.Convert[T](r.noise.Next())
}

// Noise exposes the underlying generator
func (r *FlaggedDataReplacer[T]) Noise() *NoiseGenerator { return r.noise }
