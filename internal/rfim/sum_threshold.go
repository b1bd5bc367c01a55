package rfim

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// sumThresholdRho is the per-octave threshold growth of the SumThreshold method.
const sumThresholdRho = 1.5

// SumThresholdConfig holds configuration for the SumThreshold detector.
// All values should come from the application config file.
type SumThresholdConfig struct {
	// ItsCutoff is the single-sample threshold in units of the block spread (from config: sum_threshold.its_cutoff)
	ItsCutoff float64
	// BaseSensitivity scales the block spread (from config: sum_threshold.base_sensitivity)
	BaseSensitivity float64
	// Windows are the window lengths tried, ascending (from config: sum_threshold.window)
	Windows []int
}

// DefaultSumThresholdConfig returns the recommended SumThreshold settings.
func DefaultSumThresholdConfig() SumThresholdConfig {
	return SumThresholdConfig{
		ItsCutoff:       5.0,
		BaseSensitivity: 1.0,
		Windows:         []int{1, 2, 4, 6, 8, 16, 32, 64},
	}
}

// SumThreshold flags runs of moderately bright samples along time and
// frequency: a window of w samples is flagged when its sum reaches w times a
// threshold that shrinks as w grows. It keeps no state between blocks.
type SumThreshold[T tf.Sample] struct {
	config SumThresholdConfig
}

// NewSumThreshold creates a SumThreshold detector.
func NewSumThreshold[T tf.Sample](cfg SumThresholdConfig) (*SumThreshold[T], error) {
	if cfg.ItsCutoff <= 0 {
		return nil, ErrInvalidCutoff
	}
	if cfg.BaseSensitivity <= 0 {
		return nil, ErrInvalidSensitivity
	}
	if len(cfg.Windows) == 0 {
		return nil, ErrInvalidWindow
	}
	for i, w := range cfg.Windows {
		if w <= 0 || (i > 0 && w <= cfg.Windows[i-1]) {
			return nil, ErrInvalidWindow
		}
	}
	cfg.Windows = slices.Clone(cfg.Windows)
	return &SumThreshold[T]{config: cfg}, nil
}

// Name returns "sum_threshold"
func (d *SumThreshold[T]) Name() string { return "sum_threshold" }

// Config returns the current configuration
func (d *SumThreshold[T]) Config() SumThresholdConfig { return d.config }

// WindowThreshold returns the threshold a window of w samples must reach,
// given the block median and spread factor.
func (d *SumThreshold[T]) WindowThreshold(w int, median, factor float64) float64 {
	thresholdI := d.config.ItsCutoff * math.Pow(sumThresholdRho, math.Log2(float64(w))) / float64(w)
	return median + thresholdI*factor
}

// Mask computes the SumThreshold flags of block without reporting them.
func (d *SumThreshold[T]) Mask(block *tf.Block[T]) *tf.FlagGrid {
	nspec, nchan := block.NumberOfSpectra(), block.NumberOfChannels()
	mask := tf.NewFlagGrid(nspec, nchan)
	if mask.Len() == 0 {
		return mask
	}

	vals := tf.ToFloat64(nil, block.Data())
	median := Median(vals)
	factor := d.config.BaseSensitivity
	if stddev := stat.PopStdDev(vals, nil); stddev > 0 {
		factor *= stddev
	}

	flags := mask.Values()
	prev := make([]bool, len(flags))
	for _, w := range d.config.Windows {
		threshold := d.WindowThreshold(w, median, factor)

		// horizontal: along time, one channel at a time
		if w <= nspec {
			copy(prev, flags)
			for c := 0; c < nchan; c++ {
				sumThresholdPass(vals, prev, flags, c, nchan, nspec, w, threshold)
			}
		}
		// vertical: along frequency, one spectrum at a time
		if w <= nchan {
			copy(prev, flags)
			for s := 0; s < nspec; s++ {
				sumThresholdPass(vals, prev, flags, s*nchan, 1, nchan, w, threshold)
			}
		}
	}
	return mask
}

// sumThresholdPass slides a window of w over the n samples starting at offset
// with the given stride. Flags are read from prev and written to out.
func sumThresholdPass(vals []float64, prev, out []bool, offset, stride, n, w int, threshold float64) {
	value := func(i int) float64 {
		idx := offset + i*stride
		if prev[idx] {
			return threshold
		}
		return vals[idx]
	}
	limit := float64(w) * threshold
	var sum float64
	for i := 0; i < w; i++ {
		sum += value(i)
	}
	for start := 0; ; start++ {
		if sum >= limit {
			for i := start; i < start+w; i++ {
				out[offset+i*stride] = true
			}
		}
		if start+w >= n {
			break
		}
		sum += value(start+w) - value(start)
	}
}

// Detect flags block using the SumThreshold method.
func (d *SumThreshold[T]) Detect(block *tf.Block[T], a Adapter) {
	mask := d.Mask(block)
	nchan := block.NumberOfChannels()
	for s := 0; s < block.NumberOfSpectra(); s++ {
		if mask.CountSpectrum(s) == 0 {
			a.MarkGoodSpectrum(s)
			continue
		}
		for c := 0; c < nchan; c++ {
			if mask.Get(s, c) {
				a.MarkBad(s, c)
			} else {
				a.MarkGood(s, c)
			}
		}
	}
}
