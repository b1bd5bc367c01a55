package rfim

import (
	"fmt"
	"math/rand/v2"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// Adapter receives a detector's verdicts for one block. Indices are always
// within the block the adapter was created for.
//
// Detectors must report every decision through the adapter and never write to
// the block directly; the adapter alone decides whether a bad sample is
// flagged or overwritten.
type Adapter interface {
	MarkGood(spectrum, channel int)
	MarkBad(spectrum, channel int)
	MarkGoodChannel(channel int)
	MarkBadChannel(channel int)
	MarkGoodSpectrum(spectrum int)
	MarkBadSpectrum(spectrum int)
	// UpdateStats supplies fresh noise statistics for replacement samples.
	UpdateStats(mean, rms float64)
}

// Shifter is implemented by adapters that may offset a whole spectrum in
// place (used for zero-DM subtraction). Flagging adapters do not implement it.
type Shifter interface {
	Shift(spectrum int, delta float64)
}

// Mode selects how bad samples are handled.
type Mode int

const (
	// ModeReplace overwrites bad samples with matched Gaussian noise
	ModeReplace Mode = iota
	// ModeFlag records bad samples in a FlagGrid and leaves data untouched
	ModeFlag
	// ModeLastUnflagged overwrites bad samples with the channel's last good value
	ModeLastUnflagged
)

var modeNames = map[Mode]string{
	ModeReplace:       "replace",
	ModeFlag:          "flag",
	ModeLastUnflagged: "last_unflagged",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a configuration name onto a Mode.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, name)
}

// FlagAdapter marks bad samples in a FlaggedData wrapper.
type FlagAdapter[T tf.Sample] struct {
	flagged *FlaggedData[T]
}

// NewFlagAdapter wraps block in a fresh, all-false FlaggedData.
func NewFlagAdapter[T tf.Sample](block *tf.Block[T]) *FlagAdapter[T] {
	return &FlagAdapter[T]{flagged: NewFlaggedData(block)}
}

func (a *FlagAdapter[T]) MarkGood(int, int)            {}
func (a *FlagAdapter[T]) MarkGoodChannel(int)          {}
func (a *FlagAdapter[T]) MarkGoodSpectrum(int)         {}
func (a *FlagAdapter[T]) UpdateStats(float64, float64) {}

func (a *FlagAdapter[T]) MarkBad(s, c int)      { a.flagged.flags.Set(s, c, true) }
func (a *FlagAdapter[T]) MarkBadChannel(c int)  { a.flagged.flags.SetChannel(c, true) }
func (a *FlagAdapter[T]) MarkBadSpectrum(s int) { a.flagged.flags.SetSpectrum(s, true) }

// Data returns the flagged wrapper
func (a *FlagAdapter[T]) Data() *FlaggedData[T] { return a.flagged }

// ReplaceAdapter overwrites bad samples with noise matched to the block.
type ReplaceAdapter[T tf.Sample] struct {
	block    *tf.Block[T]
	replacer *FlaggedDataReplacer[T]
}

// NewReplaceAdapter seeds its noise from the statistics of block.
func NewReplaceAdapter[T tf.Sample](block *tf.Block[T], src rand.Source) *ReplaceAdapter[T] {
	return &ReplaceAdapter[T]{block: block, replacer: NewFlaggedDataReplacer(block, src)}
}

func (a *ReplaceAdapter[T]) MarkGood(int, int)    {}
func (a *ReplaceAdapter[T]) MarkGoodChannel(int)  {}
func (a *ReplaceAdapter[T]) MarkGoodSpectrum(int) {}

func (a *ReplaceAdapter[T]) MarkBad(s, c int) {
	a.block.Set(s, c, a.replacer.Next())
}

func (a *ReplaceAdapter[T]) MarkBadChannel(c int) {
	ch := a.block.Channel(c)
	for s := 0; s < ch.Len(); s++ {
		ch.Set(s, a.replacer.Next())
	}
}

func (a *ReplaceAdapter[T]) MarkBadSpectrum(s int) {
	spec := a.block.Spectrum(s)
	for c := range spec {
		spec[c] = a.replacer.Next()
	}
}

func (a *ReplaceAdapter[T]) UpdateStats(mean, rms float64) {
	a.replacer.Reseed(mean, rms)
}

// Shift subtracts delta from every sample of spectrum s.
func (a *ReplaceAdapter[T]) Shift(s int, delta float64) {
	shiftSpectrum(a.block, s, delta)
}

// Data returns the (mutated) block
func (a *ReplaceAdapter[T]) Data() *tf.Block[T] { return a.block }

// LastUnflaggedAdapter overwrites bad samples with the most recent good value
// seen on the same channel, falling back to matched noise until one exists.
// Good values are only learnt from per-sample and per-spectrum MarkGood calls.
type LastUnflaggedAdapter[T tf.Sample] struct {
	block    *tf.Block[T]
	replacer *FlaggedDataReplacer[T]
	last     []T
	seen     []bool
}

// NewLastUnflaggedAdapter creates an adapter for block.
func NewLastUnflaggedAdapter[T tf.Sample](block *tf.Block[T], src rand.Source) *LastUnflaggedAdapter[T] {
	return &LastUnflaggedAdapter[T]{
		block:    block,
		replacer: NewFlaggedDataReplacer(block, src),
		last:     make([]T, block.NumberOfChannels()),
		seen:     make([]bool, block.NumberOfChannels()),
	}
}

func (a *LastUnflaggedAdapter[T]) MarkGood(s, c int) {
	a.last[c] = a.block.At(s, c)
	a.seen[c] = true
}

func (a *LastUnflaggedAdapter[T]) MarkGoodSpectrum(s int) {
	copy(a.last, a.block.Spectrum(s))
	for c := range a.seen {
		a.seen[c] = true
	}
}

func (a *LastUnflaggedAdapter[T]) MarkGoodChannel(int) {}

func (a *LastUnflaggedAdapter[T]) MarkBad(s, c int) {
	a.block.Set(s, c, a.replacement(c))
}

func (a *LastUnflaggedAdapter[T]) MarkBadChannel(c int) {
	ch := a.block.Channel(c)
	for s := 0; s < ch.Len(); s++ {
		ch.Set(s, a.replacement(c))
	}
}

func (a *LastUnflaggedAdapter[T]) MarkBadSpectrum(s int) {
	spec := a.block.Spectrum(s)
	for c := range spec {
		spec[c] = a.replacement(c)
	}
}

func (a *LastUnflaggedAdapter[T]) UpdateStats(mean, rms float64) {
	a.replacer.Reseed(mean, rms)
}

// Shift subtracts delta from every sample of spectrum s.
func (a *LastUnflaggedAdapter[T]) Shift(s int, delta float64) {
	shiftSpectrum(a.block, s, delta)
}

// Data returns the (mutated) block
func (a *LastUnflaggedAdapter[T]) Data() *tf.Block[T] { return a.block }

func (a *LastUnflaggedAdapter[T]) replacement(c int) T {
	if a.seen[c] {
		return a.last[c]
	}
	return a.replacer.Next()
}

func shiftSpectrum[T tf.Sample](b *tf.Block[T], s int, delta float64) {
	spec := b.Spectrum(s)
	for c, v := range spec {
		spec[c] = tf.Convert[T](float64(v) - delta)
	}
}
