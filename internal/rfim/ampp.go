package rfim

import (
	"math"
	"slices"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"github.com/ColonelBlimp/rfim/internal/monitoring"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

const (
	// amppGoodFraction is the minimum fraction of good channels for a band (or the whole spectrum) to be good
	amppGoodFraction = 0.8
	// amppModelClipRMS bounds how far from the model a value may lie and still update it
	amppModelClipRMS = 3.0
	// amppLossOfLock is the bad-spectrum fraction per reporting period that forces retraining
	amppLossOfLock = 0.99
)

// AmppConfig holds configuration for the AMPP adaptive bandpass detector.
// All values should come from the application config file.
type AmppConfig struct {
	// ChannelRejectionRMS flags a sample this many running RMS above the bandpass (from config: ampp.channel_rejection_rms)
	ChannelRejectionRMS float64
	// SpectrumRejectionRMS flags a spectrum whose mean drifts this many RMS (from config: ampp.spectrum_rejection_rms)
	SpectrumRejectionRMS float64
	// MaxHistory is the length of the running averages, in spectra (from config: ampp.max_history)
	MaxHistory int
	// ZeroDM subtracts the residual spectrum mean from accepted spectra (from config: ampp.zero_dm)
	ZeroDM bool
	// Bands is the number of mini-bands the channels are split into (from config: ampp.nbands)
	Bands int
}

// DefaultAmppConfig returns the recommended AMPP settings.
func DefaultAmppConfig() AmppConfig {
	return AmppConfig{
		ChannelRejectionRMS:  10.0,
		SpectrumRejectionRMS: 6.0,
		MaxHistory:           10000,
		ZeroDM:               false,
		Bands:                8,
	}
}

// Bandpass is an immutable snapshot of the AMPP bandpass model.
type Bandpass struct {
	// Values is the expected level of every channel
	Values []float64
	// RMS is the running noise RMS at the time of the snapshot
	RMS float64
}

// BandpassHandler is called with every new bandpass snapshot.
// It is invoked from the processing goroutine and must not block.
type BandpassHandler func(bp Bandpass)

// MiniBand accumulates one contiguous range of channels of a spectrum.
type MiniBand struct {
	Start, End int // channel range [Start, End)
	sum        float64
	sumSq      float64
	min        float64
	count      int
}

func (b *MiniBand) reset() {
	b.sum, b.sumSq, b.count = 0, 0, 0
	b.min = math.Inf(1)
}

func (b *MiniBand) add(v float64) {
	b.sum += v
	b.sumSq += v * v
	b.count++
	if v < b.min {
		b.min = v
	}
}

// Mean returns the mean of the accumulated values
func (b *MiniBand) Mean() float64 {
	if b.count == 0 {
		return 0
	}
	return b.sum / float64(b.count)
}

// Sigma returns the population standard deviation of the accumulated values
func (b *MiniBand) Sigma() float64 {
	if b.count == 0 {
		return 0
	}
	mean := b.Mean()
	return math.Sqrt(math.Max(b.sumSq/float64(b.count)-mean*mean, 0))
}

// Min returns the smallest accumulated value
func (b *MiniBand) Min() float64 { return b.min }

// Width returns the number of channels covered
func (b *MiniBand) Width() int { return b.End - b.Start }

// splitBands divides nchannels into nbands contiguous bands of at least two
// channels. A remainder of two or more channels gets its own band; a single
// leftover channel joins the last band.
func splitBands(nchannels, nbands int) []MiniBand {
	if nchannels <= 0 {
		return nil
	}
	nbands = max(min(nbands, nchannels/2), 1)
	width := nchannels / nbands
	bands := make([]MiniBand, 0, nbands+1)
	for i := 0; i < nbands; i++ {
		bands = append(bands, MiniBand{Start: i * width, End: (i + 1) * width})
	}
	if rem := nchannels - nbands*width; rem >= 2 {
		bands = append(bands, MiniBand{Start: nbands * width, End: nchannels})
	} else if rem == 1 {
		bands[len(bands)-1].End = nchannels
	}
	return bands
}

// runningAverage is a fixed-capacity ring of values with a running sum.
type runningAverage struct {
	buf   []float64
	next  int
	count int
	sum   float64
}

func newRunningAverage(capacity int) *runningAverage {
	return &runningAverage{buf: make([]float64, capacity)}
}

// push adds v, evicting the oldest value once full.
func (r *runningAverage) push(v float64) {
	if r.count == len(r.buf) {
		r.sum -= r.buf[r.next]
	} else {
		r.count++
	}
	r.buf[r.next] = v
	r.sum += v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
	}
}

func (r *runningAverage) full() bool { return r.count == len(r.buf) }

func (r *runningAverage) mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

// resync recomputes the running sum to shed accumulated rounding error.
func (r *runningAverage) resync() {
	var sum float64
	if r.full() {
		for _, v := range r.buf {
			sum += v
		}
	} else {
		for _, v := range r.buf[:r.count] {
			sum += v
		}
	}
	r.sum = sum
}

func (r *runningAverage) reset() {
	r.next, r.count, r.sum = 0, 0, 0
}

// Ampp tracks the bandpass of a stream and flags samples and spectra that
// stand out from it.
//
// Until MaxHistory spectra have been seen the detector is training: it learns
// the bandpass and noise level and flags nothing. Afterwards it flags samples
// above the bandpass, rejects whole spectra that are mostly bad or whose level
// jumps, and keeps adapting its model with accepted data only.
type Ampp[T tf.Sample] struct {
	config    AmppConfig
	nchannels int
	bands     []MiniBand

	bandpass    []float64
	bandpassRMS float64
	replacement []float64
	replMean    float64
	replRMS     float64

	meanAvg      *runningAverage
	rmsAvg       *runningAverage
	lastGoodMean float64
	lastGoodRMS  float64

	training bool
	history  int // spectra blended into the bandpass while training

	// reporting period counters
	periodSpectra     int
	periodBadSpectra  int
	periodBadChannels int

	badScratch  []bool
	valScratch  []float64
	sortScratch []float64

	snapshot   atomic.Pointer[Bandpass]
	handlerPtr atomic.Pointer[BandpassHandler]
}

// NewAmpp creates an AMPP detector in the training state.
func NewAmpp[T tf.Sample](cfg AmppConfig) (*Ampp[T], error) {
	if cfg.ChannelRejectionRMS <= 0 || cfg.SpectrumRejectionRMS <= 0 {
		return nil, ErrInvalidRejectionRMS
	}
	if cfg.MaxHistory <= 0 {
		return nil, ErrInvalidMaxHistory
	}
	if cfg.Bands <= 0 {
		return nil, ErrInvalidBands
	}
	return &Ampp[T]{
		config:   cfg,
		meanAvg:  newRunningAverage(cfg.MaxHistory),
		rmsAvg:   newRunningAverage(cfg.MaxHistory),
		training: true,
	}, nil
}

// Name returns "ampp"
func (d *Ampp[T]) Name() string { return "ampp" }

// Config returns the current configuration
func (d *Ampp[T]) Config() AmppConfig { return d.config }

// SetBandpassHandler registers h to receive bandpass snapshots. nil unregisters.
func (d *Ampp[T]) SetBandpassHandler(h BandpassHandler) {
	if h == nil {
		d.handlerPtr.Store(nil)
	} else {
		d.handlerPtr.Store(&h)
	}
}

// Bandpass returns the most recent snapshot, or nil while first training.
// Safe to call from any goroutine.
func (d *Ampp[T]) Bandpass() *Bandpass { return d.snapshot.Load() }

// Training reports whether the detector is still learning the bandpass
func (d *Ampp[T]) Training() bool { return d.training }

// RunningRMS returns the current running noise RMS estimate
func (d *Ampp[T]) RunningRMS() float64 { return d.rmsAvg.mean() }

// RunningMean returns the running mean of spectrum residuals
func (d *Ampp[T]) RunningMean() float64 { return d.meanAvg.mean() }

// ReplacementStats returns the mean and RMS used for replacement noise
func (d *Ampp[T]) ReplacementStats() (mean, rms float64) { return d.replMean, d.replRMS }

// Reset discards the learnt model and returns to training.
func (d *Ampp[T]) Reset() {
	d.meanAvg.reset()
	d.rmsAvg.reset()
	d.training = true
	d.history = 0
	d.periodSpectra, d.periodBadSpectra, d.periodBadChannels = 0, 0, 0
}

// Detect processes every spectrum of block in order.
func (d *Ampp[T]) Detect(block *tf.Block[T], a Adapter) {
	if block.NumberOfChannels() == 0 {
		return
	}
	if block.NumberOfChannels() != d.nchannels {
		d.resize(block.NumberOfChannels())
	}
	if !d.training {
		a.UpdateStats(d.replMean, d.replRMS)
	}
	for s := 0; s < block.NumberOfSpectra(); s++ {
		vals := tf.ToFloat64(d.valScratch, block.Spectrum(s))
		d.valScratch = vals
		if d.training {
			d.train(s, vals, a)
		} else {
			d.filter(s, vals, a)
		}
	}
}

func (d *Ampp[T]) resize(nchannels int) {
	if d.nchannels != 0 {
		monitoring.Logf("ampp: channel count changed from %d to %d, retraining", d.nchannels, nchannels)
	}
	d.nchannels = nchannels
	d.bands = splitBands(nchannels, d.config.Bands)
	d.bandpass = make([]float64, nchannels)
	d.replacement = make([]float64, nchannels)
	d.badScratch = make([]bool, nchannels)
	d.Reset()
}

// train folds one spectrum into the bandpass model.
//
// Each band's floor is its median. Channels more than ChannelRejectionRMS
// above the floor are treated as RFI: they contribute the floor to the
// bandpass and are left out of the band statistics and the residual, exactly
// as filter leaves out bad channels.
func (d *Ampp[T]) train(s int, vals []float64, a Adapter) {
	for i := range d.bands {
		b := &d.bands[i]
		b.reset()
		for _, v := range vals[b.Start:b.End] {
			b.add(v)
		}
	}
	spread := d.minBandSigma()
	limit := d.config.ChannelRejectionRMS * spread

	weight := 1 / float64(d.history+1)
	for i := range d.bands {
		b := &d.bands[i]
		floor := d.bandFloor(vals[b.Start:b.End])
		hi := floor + amppModelClipRMS*spread
		b.reset()
		for c := b.Start; c < b.End; c++ {
			v := vals[c]
			d.badScratch[c] = v > floor+limit
			if d.badScratch[c] {
				v = floor
			} else {
				b.add(v)
				v = math.Min(v, hi)
			}
			d.bandpass[c] += (v - d.bandpass[c]) * weight
		}
	}
	d.history++

	rms := d.minBandSigma()
	var (
		residual float64
		good     int
	)
	for c, v := range vals {
		if d.badScratch[c] {
			continue
		}
		residual += v - d.bandpass[c]
		good++
		if math.Abs(v-d.bandpass[c]) <= amppModelClipRMS*rms {
			d.replacement[c] = v
		}
	}
	if good > 0 {
		residual /= float64(good)
	}

	d.meanAvg.push(residual)
	d.rmsAvg.push(rms)
	d.lastGoodMean, d.lastGoodRMS = residual, rms
	a.MarkGoodSpectrum(s)

	if d.rmsAvg.full() {
		d.finishTraining(a)
	}
}

// bandFloor returns the median of one band of a spectrum.
func (d *Ampp[T]) bandFloor(vals []float64) float64 {
	d.sortScratch = append(d.sortScratch[:0], vals...)
	slices.Sort(d.sortScratch)
	return quantileSorted(d.sortScratch, 0.5)
}

func (d *Ampp[T]) finishTraining(a Adapter) {
	d.training = false
	d.bandpassRMS = d.rmsAvg.mean()
	d.lastGoodMean = d.meanAvg.mean()
	d.lastGoodRMS = d.bandpassRMS
	d.updateReplacementStats()
	a.UpdateStats(d.replMean, d.replRMS)
	monitoring.Logf("ampp: training complete after %d spectra, rms=%.4g", d.history, d.bandpassRMS)
	d.publish()
}

// filter applies the trained model to one spectrum.
func (d *Ampp[T]) filter(s int, vals []float64, a Adapter) {
	runningRMS := d.rmsAvg.mean()
	runningMean := d.meanAvg.mean()
	channelLimit := d.config.ChannelRejectionRMS * runningRMS

	var (
		good     int
		badBands int
		residual float64
	)
	for i := range d.bands {
		b := &d.bands[i]
		b.reset()
		for c := b.Start; c < b.End; c++ {
			bad := vals[c] > d.bandpass[c]+channelLimit
			d.badScratch[c] = bad
			if !bad {
				b.add(vals[c])
				residual += vals[c] - d.bandpass[c]
			}
		}
		good += b.count
		if float64(b.count) < amppGoodFraction*float64(b.Width()) {
			badBands++
		}
	}

	spectrumBad := 2*badBands >= len(d.bands) ||
		float64(good) < amppGoodFraction*float64(d.nchannels)
	if !spectrumBad {
		residual /= float64(good)
		limit := d.config.SpectrumRejectionRMS * d.bandpassRMS / math.Sqrt(float64(d.nchannels))
		spectrumBad = math.Abs(residual-runningMean) > limit
	}

	d.periodSpectra++
	if spectrumBad {
		a.MarkBadSpectrum(s)
		d.periodBadSpectra++
		d.meanAvg.push(d.lastGoodMean)
		d.rmsAvg.push(d.lastGoodRMS)
	} else {
		d.accept(s, vals, residual, runningRMS, a)
	}

	if d.periodSpectra >= d.config.MaxHistory {
		d.endPeriod(a)
	}
}

// accept reports per-sample verdicts for a good spectrum and adapts the model.
func (d *Ampp[T]) accept(s int, vals []float64, residual, runningRMS float64, a Adapter) {
	rms := d.minBandSigma()
	if rms == 0 {
		rms = d.lastGoodRMS
	}

	if d.config.ZeroDM {
		if sh, ok := canShift(a); ok {
			sh.Shift(s, residual)
		}
	}

	clip := amppModelClipRMS * runningRMS
	step := 1 / float64(d.config.MaxHistory)
	for c, v := range vals {
		if d.badScratch[c] {
			a.MarkBad(s, c)
			d.periodBadChannels++
			continue
		}
		a.MarkGood(s, c)
		if math.Abs(v-d.bandpass[c]) <= clip {
			d.replacement[c] = v
			d.bandpass[c] += (v - d.bandpass[c]) * step
		}
	}
	d.updateReplacementStats()

	d.meanAvg.push(residual)
	d.rmsAvg.push(rms)
	d.lastGoodMean, d.lastGoodRMS = residual, rms
}

// endPeriod logs the period summary, republishes the bandpass and retrains
// when nearly everything was rejected.
func (d *Ampp[T]) endPeriod(a Adapter) {
	badFrac := float64(d.periodBadSpectra) / float64(d.periodSpectra)
	chanFrac := float64(d.periodBadChannels) / float64(d.periodSpectra*d.nchannels)
	monitoring.Logf("ampp: %.2f%% spectra and %.2f%% samples flagged over last %d spectra",
		100*badFrac, 100*chanFrac, d.periodSpectra)

	d.periodSpectra, d.periodBadSpectra, d.periodBadChannels = 0, 0, 0
	d.meanAvg.resync()
	d.rmsAvg.resync()

	if badFrac > amppLossOfLock {
		monitoring.Logf("ampp: lost lock on bandpass, retraining")
		d.Reset()
		return
	}
	d.bandpassRMS = d.rmsAvg.mean()
	a.UpdateStats(d.replMean, d.replRMS)
	d.publish()
}

// minBandSigma returns the smallest sigma among bands holding at least two
// values, or zero when there is none.
func (d *Ampp[T]) minBandSigma() float64 {
	rms := math.Inf(1)
	for i := range d.bands {
		if d.bands[i].count >= 2 {
			rms = math.Min(rms, d.bands[i].Sigma())
		}
	}
	if math.IsInf(rms, 1) {
		return 0
	}
	return rms
}

func (d *Ampp[T]) updateReplacementStats() {
	d.replMean, d.replRMS = stat.PopMeanStdDev(d.replacement, nil)
	if math.IsNaN(d.replRMS) {
		d.replRMS = 0
	}
}

// publish stores a new bandpass snapshot and hands it to the handler.
func (d *Ampp[T]) publish() {
	bp := &Bandpass{
		Values: append([]float64(nil), d.bandpass...),
		RMS:    d.bandpassRMS,
	}
	d.snapshot.Store(bp)
	if h := d.handlerPtr.Load(); h != nil {
		(*h)(*bp)
	}
}
