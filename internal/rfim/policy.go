package rfim

import (
	"math/rand/v2"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// Output is the product of running a detector under a policy. Block is always
// set; Flagged is non-nil only under ModeFlag, in which case Block is the
// untouched input.
type Output[T tf.Sample] struct {
	Block   *tf.Block[T]
	Flagged *FlaggedData[T]
}

// IsFlagged reports whether the output carries a FlagGrid
func (o Output[T]) IsFlagged() bool { return o.Flagged != nil }

// Handler is the per-block detector logic run by a Policy.
type Handler[T tf.Sample] func(block *tf.Block[T], a Adapter)

// Policy creates the adapter for each block and packages the result.
// The PRNG is owned by the policy and shared by the adapters it creates, so
// a Policy must not be used from more than one goroutine at a time.
type Policy[T tf.Sample] struct {
	mode Mode
	src  rand.Source
}

// NewPolicy returns a policy for mode with a PRNG seeded from seed.
func NewPolicy[T tf.Sample](mode Mode, seed uint64) (*Policy[T], error) {
	if _, ok := modeNames[mode]; !ok {
		return nil, ErrInvalidMode
	}
	return &Policy[T]{mode: mode, src: NewSource(seed)}, nil
}

// Mode returns the configured mode
func (p *Policy[T]) Mode() Mode { return p.mode }

// NewAdapter creates the adapter matching the policy mode for block.
func (p *Policy[T]) NewAdapter(block *tf.Block[T]) Adapter {
	switch p.mode {
	case ModeFlag:
		return NewFlagAdapter(block)
	case ModeLastUnflagged:
		return NewLastUnflaggedAdapter(block, p.src)
	default:
		return NewReplaceAdapter(block, p.src)
	}
}

// Exec runs handler against block through a fresh adapter.
func (p *Policy[T]) Exec(block *tf.Block[T], handler Handler[T]) Output[T] {
	a := p.NewAdapter(block)
	handler(block, a)
	return Finalize(block, a)
}

// Finalize converts an adapter created by a Policy into an Output.
func Finalize[T tf.Sample](block *tf.Block[T], a Adapter) Output[T] {
	if fa, ok := a.(*FlagAdapter[T]); ok {
		return Output[T]{Block: block, Flagged: fa.Data()}
	}
	return Output[T]{Block: block}
}
