package rfim

import (
	"github.com/ColonelBlimp/rfim/internal/tf"
)

// IqrmConfig holds configuration for the IQRM channel detector.
// All values should come from the application config file.
type IqrmConfig struct {
	// Radius is the largest channel lag compared against (from config: iqrm.radius)
	Radius int
	// Threshold is the outlier threshold in robust sigmas (from config: iqrm.threshold)
	Threshold float64
	// EdgeChannels are always masked at both band edges (from config: iqrm.edge_channels)
	EdgeChannels int
}

// DefaultIqrmConfig returns the recommended IQRM settings.
func DefaultIqrmConfig() IqrmConfig {
	return IqrmConfig{
		Radius:       5,
		Threshold:    3.0,
		EdgeChannels: 0,
	}
}

// Iqrm masks whole channels whose per-block standard deviation is an outlier
// relative to its neighbours. It keeps no state between blocks.
type Iqrm[T tf.Sample] struct {
	config IqrmConfig
}

// NewIqrm creates an IQRM detector.
func NewIqrm[T tf.Sample](cfg IqrmConfig) (*Iqrm[T], error) {
	if cfg.Radius <= 0 {
		return nil, ErrInvalidRadius
	}
	if cfg.Threshold <= 0 {
		return nil, ErrInvalidIqrmThreshold
	}
	if cfg.EdgeChannels < 0 {
		return nil, ErrInvalidEdgeChannels
	}
	return &Iqrm[T]{config: cfg}, nil
}

// Name returns "iqrm"
func (d *Iqrm[T]) Name() string { return "iqrm" }

// Config returns the current configuration
func (d *Iqrm[T]) Config() IqrmConfig { return d.config }

// Detect masks outlier channels of block.
func (d *Iqrm[T]) Detect(block *tf.Block[T], a Adapter) {
	nchan := block.NumberOfChannels()
	if nchan == 0 || block.NumberOfSpectra() == 0 {
		return
	}
	stats := tf.ChannelStats(block)
	stddev := make([]float64, nchan)
	for c, s := range stats {
		stddev[c] = s.StdDev
	}
	mask := IqrmMask(stddev, d.config.Radius, d.config.Threshold, d.config.EdgeChannels)
	for c, bad := range mask {
		if bad {
			a.MarkBadChannel(c)
		} else {
			a.MarkGoodChannel(c)
		}
	}
}

// IqrmLags returns the trial lags for radius: 1, then growing geometrically by
// 1.5 (at least by one) while not exceeding radius, each followed by its negation.
func IqrmLags(radius int) []int {
	var lags []int
	for lag := 1; lag <= radius; lag = max(int(1.5*float64(lag)), lag+1) {
		lags = append(lags, lag, -lag)
	}
	return lags
}

// voteTracker records, per channel, who it voted against and who voted against it.
type voteTracker struct {
	cast     []map[int]struct{}
	received []map[int]struct{}
}

func newVoteTracker(n int) *voteTracker {
	return &voteTracker{
		cast:     make([]map[int]struct{}, n),
		received: make([]map[int]struct{}, n),
	}
}

// vote records that voter considers victim an outlier.
func (v *voteTracker) vote(voter, victim int) {
	if v.cast[voter] == nil {
		v.cast[voter] = make(map[int]struct{})
	}
	if v.received[victim] == nil {
		v.received[victim] = make(map[int]struct{})
	}
	v.cast[voter][victim] = struct{}{}
	v.received[victim][voter] = struct{}{}
}

// confirmed reports whether victim received a vote from a channel that cast
// strictly fewer votes than victim received.
func (v *voteTracker) confirmed(victim int) bool {
	nrecv := len(v.received[victim])
	for voter := range v.received[victim] {
		if len(v.cast[voter]) < nrecv {
			return true
		}
	}
	return false
}

// IqrmMask computes the IQRM channel mask of stat (one value per channel).
//
// For every trial lag, a channel whose lagged difference exceeds
// median + threshold*robust_sigma receives a vote from its comparison partner.
// A channel is masked if one of its voters cast fewer votes than the channel
// received, which stops a single bright channel from dragging down its
// neighbours. The first and last edgeChannels are always masked.
// radius is clamped to [1, len(stat)].
func IqrmMask(stat []float64, radius int, threshold float64, edgeChannels int) []bool {
	n := len(stat)
	mask := make([]bool, n)
	if n == 0 {
		return mask
	}
	radius = min(max(radius, 1), n)

	votes := newVoteTracker(n)
	var diff []float64
	for _, lag := range IqrmLags(radius) {
		diff = LaggedDiff(diff, stat, lag)
		rs := ComputeRobustStats(diff)
		limit := rs.Median + threshold*rs.StdDev
		for i, d := range diff {
			if d > limit {
				votes.vote(clampIndex(i-lag, n), i)
			}
		}
	}

	for i := range mask {
		mask[i] = votes.confirmed(i)
	}

	edgeChannels = min(max(edgeChannels, 0), n)
	for i := 0; i < edgeChannels; i++ {
		mask[i] = true
		mask[n-1-i] = true
	}
	return mask
}
