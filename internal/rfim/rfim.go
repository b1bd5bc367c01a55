// internal/rfim/rfim.go
// Package rfim implements real-time radio frequency interference mitigation
// for time-frequency spectrometer data.
//
// Detectors (AMPP, IQRM, SumThreshold, ChannelMask) only decide which samples
// are bad. They report through an Adapter, and the Policy that created the
// adapter decides whether bad samples are flagged or replaced.
package rfim

import (
	"context"
	"time"

	"github.com/ColonelBlimp/rfim/internal/monitoring"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

// Detector inspects one block and reports its verdicts through a.
// Stateful detectors (AMPP) expect blocks of one stream in order and must not
// be shared across goroutines.
type Detector[T tf.Sample] interface {
	Name() string
	Detect(block *tf.Block[T], a Adapter)
}

// Observer receives a report after every block.
type Observer interface {
	ObserveBlock(rep monitoring.BlockReport)
}

// Rfim binds a detector to a policy and is the unit of work handed to the
// pool scheduler.
type Rfim[T tf.Sample] struct {
	detector Detector[T]
	policy   *Policy[T]
	observer Observer
}

// Option configures an Rfim.
type Option[T tf.Sample] func(*Rfim[T])

// WithObserver reports per-block statistics to o.
func WithObserver[T tf.Sample](o Observer) Option[T] {
	return func(r *Rfim[T]) { r.observer = o }
}

// New creates an Rfim running detector under policy.
func New[T tf.Sample](detector Detector[T], policy *Policy[T], opts ...Option[T]) (*Rfim[T], error) {
	if detector == nil {
		return nil, ErrDetectorRequired
	}
	if policy == nil {
		return nil, ErrInvalidMode
	}
	r := &Rfim[T]{detector: detector, policy: policy}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Detector returns the wrapped detector
func (r *Rfim[T]) Detector() Detector[T] { return r.detector }

// Policy returns the wrapped policy
func (r *Rfim[T]) Policy() *Policy[T] { return r.policy }

// Run processes block and returns the policy product.
func (r *Rfim[T]) Run(block *tf.Block[T]) Output[T] {
	start := time.Now()
	counter := &countingAdapter{}
	out := r.policy.Exec(block, func(b *tf.Block[T], a Adapter) {
		counter.Adapter = a
		r.detector.Detect(b, counter)
	})

	if r.observer != nil {
		rep := monitoring.BlockReport{
			Chain:    r.detector.Name(),
			Samples:  block.Len(),
			Bad:      counter.bad,
			Channels: counter.badChannels,
			Spectra:  counter.badSpectra,
			Duration: time.Since(start),
		}
		if out.IsFlagged() {
			rep.Flagged = out.Flagged.Flags().Count()
		} else {
			rep.Flagged = min(block.Len(), counter.bad+
				counter.badChannels*block.NumberOfSpectra()+
				counter.badSpectra*block.NumberOfChannels())
		}
		r.observer.ObserveBlock(rep)
	}
	return out
}

// Process is the scheduler entry point. Cancellation is only checked before
// the block starts; a running detector always completes.
func (r *Rfim[T]) Process(ctx context.Context, block *tf.Block[T]) (Output[T], error) {
	if err := ctx.Err(); err != nil {
		return Output[T]{}, err
	}
	return r.Run(block), nil
}

// countingAdapter tallies bad verdicts on their way to the real adapter.
type countingAdapter struct {
	Adapter
	bad         int
	badChannels int
	badSpectra  int
}

func (c *countingAdapter) MarkBad(s, ch int) {
	c.bad++
	c.Adapter.MarkBad(s, ch)
}

func (c *countingAdapter) MarkBadChannel(ch int) {
	c.badChannels++
	c.Adapter.MarkBadChannel(ch)
}

func (c *countingAdapter) MarkBadSpectrum(s int) {
	c.badSpectra++
	c.Adapter.MarkBadSpectrum(s)
}

// Shift forwards to the wrapped adapter when it supports spectrum offsets.
func (c *countingAdapter) Shift(s int, delta float64) {
	if sh, ok := c.Adapter.(Shifter); ok {
		sh.Shift(s, delta)
	}
}

// SupportsShift reports whether the wrapped adapter can offset spectra.
func (c *countingAdapter) SupportsShift() bool {
	_, ok := c.Adapter.(Shifter)
	return ok
}

// Chain runs several detectors over the same block and adapter, in order.
type Chain[T tf.Sample] struct {
	detectors []Detector[T]
}

// NewChain returns a chain of the non-nil detectors given.
func NewChain[T tf.Sample](detectors ...Detector[T]) *Chain[T] {
	c := &Chain[T]{}
	for _, d := range detectors {
		if d != nil {
			c.detectors = append(c.detectors, d)
		}
	}
	return c
}

// Name joins the names of the chained detectors
func (c *Chain[T]) Name() string {
	if len(c.detectors) == 0 {
		return "none"
	}
	name := c.detectors[0].Name()
	for _, d := range c.detectors[1:] {
		name += "+" + d.Name()
	}
	return name
}

// Len returns the number of chained detectors
func (c *Chain[T]) Len() int { return len(c.detectors) }

// Detect runs every chained detector.
func (c *Chain[T]) Detect(block *tf.Block[T], a Adapter) {
	for _, d := range c.detectors {
		d.Detect(block, a)
	}
}

// canShift reports whether a supports spectrum offsets, looking through the
// counting wrapper used by Rfim.
func canShift(a Adapter) (Shifter, bool) {
	if c, ok := a.(*countingAdapter); ok {
		if !c.SupportsShift() {
			return nil, false
		}
		return c, true
	}
	sh, ok := a.(Shifter)
	return sh, ok
}
