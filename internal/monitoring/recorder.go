package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes RFI statistics as Prometheus metrics. All vectors carry
// a 'chain' label naming the detectors run over the block, e.g.
// "iqrm+sum_threshold".
type Recorder struct {
	blocksProcessed *prometheus.CounterVec   // Blocks passed through a detector
	samplesFlagged  *prometheus.CounterVec   // Individual samples reported bad
	channelsFlagged *prometheus.CounterVec   // Whole channels reported bad
	spectraFlagged  *prometheus.CounterVec   // Whole spectra reported bad
	flaggedFraction *prometheus.GaugeVec     // Fraction of the last block reported bad
	blockDuration   *prometheus.HistogramVec // Wall time per block
}

// NewRecorder creates and registers the RFI metrics with reg. A nil reg
// registers with the default Prometheus registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		blocksProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfim_blocks_processed_total",
				Help: "Number of time-frequency blocks processed",
			},
			[]string{"chain"},
		),
		samplesFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfim_samples_flagged_total",
				Help: "Number of samples flagged or replaced as RFI",
			},
			[]string{"chain"},
		),
		channelsFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfim_channels_flagged_total",
				Help: "Number of whole channels flagged or replaced as RFI",
			},
			[]string{"chain"},
		),
		spectraFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfim_spectra_flagged_total",
				Help: "Number of whole spectra flagged or replaced as RFI",
			},
			[]string{"chain"},
		),
		flaggedFraction: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rfim_flagged_fraction",
				Help: "Fraction of samples of the most recent block reported as RFI",
			},
			[]string{"chain"},
		),
		blockDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rfim_block_duration_seconds",
				Help:    "Time spent running a detector chain over one block",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"chain"},
		),
	}
}

// BlockReport summarises what a detector chain did to one block.
type BlockReport struct {
	Chain    string
	Samples  int // total samples in the block
	Bad      int // individual samples marked bad
	Channels int // whole channels marked bad
	Spectra  int // whole spectra marked bad
	Flagged  int // distinct samples affected, when known (flag policy); otherwise estimated
	Duration time.Duration
}

// ObserveBlock records a BlockReport.
func (r *Recorder) ObserveBlock(rep BlockReport) {
	r.blocksProcessed.WithLabelValues(rep.Chain).Inc()
	r.samplesFlagged.WithLabelValues(rep.Chain).Add(float64(rep.Bad))
	r.channelsFlagged.WithLabelValues(rep.Chain).Add(float64(rep.Channels))
	r.spectraFlagged.WithLabelValues(rep.Chain).Add(float64(rep.Spectra))
	if rep.Samples > 0 {
		r.flaggedFraction.WithLabelValues(rep.Chain).Set(float64(rep.Flagged) / float64(rep.Samples))
	}
	r.blockDuration.WithLabelValues(rep.Chain).Observe(rep.Duration.Seconds())
}
