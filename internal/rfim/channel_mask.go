package rfim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// ChannelRange is a half-open range of channels [Start, End).
type ChannelRange struct {
	Start int
	End   int
}

// ParseChannelRanges parses "a-b,c-d,e" into ranges. "a-b" is inclusive of
// both ends; a single number masks one channel.
func ParseChannelRanges(spec string) ([]ChannelRange, error) {
	var ranges []ChannelRange
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, found := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("parse channel range %q: %w", part, err)
		}
		end := start
		if found {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("parse channel range %q: %w", part, err)
			}
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChannelRange, part)
		}
		ranges = append(ranges, ChannelRange{Start: start, End: end + 1})
	}
	return ranges, nil
}

// ChannelMask marks a fixed set of channels bad in every block. Ranges are
// clipped to the block; a range lying wholly beyond it is ignored.
type ChannelMask[T tf.Sample] struct {
	ranges []ChannelRange
}

// NewChannelMask creates a channel mask detector.
func NewChannelMask[T tf.Sample](ranges []ChannelRange) (*ChannelMask[T], error) {
	for _, r := range ranges {
		if r.Start < 0 || r.End < r.Start {
			return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidChannelRange, r.Start, r.End)
		}
	}
	return &ChannelMask[T]{ranges: append([]ChannelRange(nil), ranges...)}, nil
}

// Name returns "channel_mask"
func (d *ChannelMask[T]) Name() string { return "channel_mask" }

// Ranges returns the configured ranges
func (d *ChannelMask[T]) Ranges() []ChannelRange { return d.ranges }

// Detect marks every masked channel of block bad.
func (d *ChannelMask[T]) Detect(block *tf.Block[T], a Adapter) {
	nchan := block.NumberOfChannels()
	for _, r := range d.ranges {
		if r.Start >= nchan {
			continue
		}
		for c := r.Start; c < min(r.End, nchan); c++ {
			a.MarkBadChannel(c)
		}
	}
}
