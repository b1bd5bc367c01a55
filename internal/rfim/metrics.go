package rfim

import (
	"fmt"

	"github.com/ColonelBlimp/rfim/internal/tf"
)

// Metrics counts agreement between an expected (truth) FlagGrid and the one
// a detector produced. It is an evaluation tool, not part of the online path.
type Metrics struct {
	TruePositives  int // flagged and expected
	FalsePositives int // flagged but not expected
	FalseNegatives int // expected but not flagged
	TrueNegatives  int // neither
}

// Compare classifies every position of actual against expected.
// Grids of different shapes are rejected with tf.ErrDimensionMismatch.
func Compare(expected, actual *tf.FlagGrid) (Metrics, error) {
	var m Metrics
	if !expected.SameShape(actual) {
		return m, fmt.Errorf("%w: expected %dx%d flags, got %dx%d", tf.ErrDimensionMismatch,
			expected.NumberOfSpectra(), expected.NumberOfChannels(),
			actual.NumberOfSpectra(), actual.NumberOfChannels())
	}
	want, got := expected.Values(), actual.Values()
	for i := range want {
		switch {
		case want[i] && got[i]:
			m.TruePositives++
		case got[i]:
			m.FalsePositives++
		case want[i]:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}
	return m, nil
}

// Add accumulates other into m.
func (m *Metrics) Add(other Metrics) {
	m.TruePositives += other.TruePositives
	m.FalsePositives += other.FalsePositives
	m.FalseNegatives += other.FalseNegatives
	m.TrueNegatives += other.TrueNegatives
}

// Total returns the number of positions compared
func (m Metrics) Total() int {
	return m.TruePositives + m.FalsePositives + m.FalseNegatives + m.TrueNegatives
}

// Expected returns the number of positions expected to be flagged
func (m Metrics) Expected() int { return m.TruePositives + m.FalseNegatives }

// CorrectPercentage is the percentage of expected flags that were found.
// Returns 100 when nothing was expected.
func (m Metrics) CorrectPercentage() float64 {
	return percentage(m.TruePositives, m.Expected(), 100)
}

// FalsePositivePercentage is the percentage of clean positions that were flagged.
func (m Metrics) FalsePositivePercentage() float64 {
	return percentage(m.FalsePositives, m.FalsePositives+m.TrueNegatives, 0)
}

// FalseNegativePercentage is the percentage of expected flags that were missed.
func (m Metrics) FalseNegativePercentage() float64 {
	return percentage(m.FalseNegatives, m.Expected(), 0)
}

// Accuracy is the percentage of positions classified correctly.
func (m Metrics) Accuracy() float64 {
	return percentage(m.TruePositives+m.TrueNegatives, m.Total(), 100)
}

func (m Metrics) String() string {
	return fmt.Sprintf("tp=%d fp=%d fn=%d tn=%d correct=%.2f%% fp=%.4f%% fn=%.2f%%",
		m.TruePositives, m.FalsePositives, m.FalseNegatives, m.TrueNegatives,
		m.CorrectPercentage(), m.FalsePositivePercentage(), m.FalseNegativePercentage())
}

func percentage(n, of int, empty float64) float64 {
	if of == 0 {
		return empty
	}
	return 100 * float64(n) / float64(of)
}
