package rfim

import (
	"fmt"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// FlaggedData pairs a block with the FlagGrid describing which of its samples
// are RFI. The grid always has the block's dimensions.
type FlaggedData[T tf.Sample] struct {
	block *tf.Block[T]
	flags *tf.FlagGrid
}

// NewFlaggedData wraps block with a fresh, all-false FlagGrid.
func NewFlaggedData[T tf.Sample](block *tf.Block[T]) *FlaggedData[T] {
	return wrapFlaggedData(block, tf.NewFlagGridFor(block))
}

// wrapFlaggedData pairs block with an existing grid. A shape mismatch is a
// programming error and panics.
func wrapFlaggedData[T tf.Sample](block *tf.Block[T], flags *tf.FlagGrid) *FlaggedData[T] {
	if !tf.Matches(flags, block) {
		panic(fmt.Sprintf("rfim: flag grid %dx%d does not match block %dx%d",
			flags.NumberOfSpectra(), flags.NumberOfChannels(),
			block.NumberOfSpectra(), block.NumberOfChannels()))
	}
	return &FlaggedData[T]{block: block, flags: flags}
}

// Data returns the underlying (unmodified) block
func (f *FlaggedData[T]) Data() *tf.Block[T] { return f.block }

// Flags returns the RFI flags
func (f *FlaggedData[T]) Flags() *tf.FlagGrid { return f.flags }

// ChannelStats computes per-channel statistics of the underlying block.
// The result is not cached; it reflects the block at call time.
func (f *FlaggedData[T]) ChannelStats() []tf.Statistics {
	return tf.ChannelStats(f.block)
}

// NumberOfSpectra returns the number of spectra of the wrapped block
func (f *FlaggedData[T]) NumberOfSpectra() int { return f.block.NumberOfSpectra() }

// NumberOfChannels returns the number of channels of the wrapped block
func (f *FlaggedData[T]) NumberOfChannels() int { return f.block.NumberOfChannels() }
