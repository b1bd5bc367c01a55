// cmd/evaluate.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/rfim/internal/config"
	"github.com/ColonelBlimp/rfim/internal/dsp"
	"github.com/ColonelBlimp/rfim/internal/monitoring"
	"github.com/ColonelBlimp/rfim/internal/pool"
	"github.com/ColonelBlimp/rfim/internal/rfim"
	"github.com/ColonelBlimp/rfim/internal/synth"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

// EvaluateOptions describes the synthetic data fed to the detector chain.
type EvaluateOptions struct {
	Streams    int
	Blocks     int
	Warmup     int // < 0 covers AMPP training, or none without AMPP
	Spectra    int
	Channels   int
	Mean       float64
	Sigma      float64
	Slope      float64
	Narrowband int     // RFI channels per block
	Broadband  int     // RFI spectra per block
	Spikes     int     // single-sample RFI per block
	Amplitude  float64 // RFI amplitude in units of Sigma

	// Tones > 0 builds every block by channelising a voltage stream that
	// carries that many CW tones. The block noise then has a standard
	// deviation of Sigma²/sqrt(Integration).
	Tones       int
	Integration int
}

// toneSampleRate only labels channel frequencies.
const toneSampleRate = 1e6

// DefaultEvaluateOptions returns a small, quick evaluation run.
func DefaultEvaluateOptions() EvaluateOptions {
	return EvaluateOptions{
		Streams:    2,
		Blocks:     4,
		Warmup:     -1,
		Spectra:    256,
		Channels:   256,
		Mean:       96,
		Sigma:      8,
		Narrowband: 2,
		Broadband:  1,
		Spikes:     8,
		Amplitude:  10,

		Integration: 16,
	}
}

var evalOpts = DefaultEvaluateOptions()

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure detector accuracy on synthetic data with injected RFI",
	Long: `evaluate generates Gaussian noise blocks for several streams, injects
narrowband, broadband and impulsive RFI at known positions, runs the configured
detector chain through the worker pool under the flag policy and reports how
many injected samples were found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		_, err = runEvaluate(ctx, cmd.OutOrStdout(), settings, evalOpts, prometheus.NewRegistry())
		return err
	},
}

func init() {
	f := evaluateCmd.Flags()
	f.IntVar(&evalOpts.Streams, "streams", evalOpts.Streams, "number of independent streams")
	f.IntVar(&evalOpts.Blocks, "blocks", evalOpts.Blocks, "scored blocks per stream")
	f.IntVar(&evalOpts.Warmup, "warmup", evalOpts.Warmup, "unscored blocks per stream processed first (-1 covers AMPP training)")
	f.IntVar(&evalOpts.Spectra, "spectra", evalOpts.Spectra, "spectra per block")
	f.IntVar(&evalOpts.Channels, "channels", evalOpts.Channels, "channels per spectrum")
	f.Float64Var(&evalOpts.Mean, "mean", evalOpts.Mean, "noise level")
	f.Float64Var(&evalOpts.Sigma, "sigma", evalOpts.Sigma, "noise standard deviation")
	f.Float64Var(&evalOpts.Slope, "slope", evalOpts.Slope, "bandpass slope per channel")
	f.IntVar(&evalOpts.Narrowband, "narrowband", evalOpts.Narrowband, "RFI channels injected per block")
	f.IntVar(&evalOpts.Broadband, "broadband", evalOpts.Broadband, "RFI spectra injected per block")
	f.IntVar(&evalOpts.Spikes, "spikes", evalOpts.Spikes, "single-sample RFI injected per block")
	f.Float64Var(&evalOpts.Amplitude, "amplitude", evalOpts.Amplitude, "RFI amplitude in noise sigmas")
	f.IntVar(&evalOpts.Tones, "tones", evalOpts.Tones, "CW tones in a channelised voltage stream (0 generates blocks directly)")
	f.IntVar(&evalOpts.Integration, "integration", evalOpts.Integration, "sub-spectra averaged per spectrum when channelising")
	rootCmd.AddCommand(evaluateCmd)
}

// runEvaluate performs an evaluation run and returns the combined metrics.
func runEvaluate(ctx context.Context, out io.Writer, settings *config.Settings, opts EvaluateOptions, reg prometheus.Registerer) (rfim.Metrics, error) {
	var total rfim.Metrics
	if opts.Streams < 1 || opts.Blocks < 1 || opts.Spectra < 1 || opts.Channels < 1 {
		return total, fmt.Errorf("evaluate: streams, blocks, spectra and channels must be positive")
	}
	warmup := evaluateWarmup(settings, opts)

	var fb *dsp.Filterbank
	if opts.Tones > 0 {
		var err error
		fb, err = dsp.NewFilterbank(dsp.FilterbankConfig{
			SampleRate:  toneSampleRate,
			Channels:    opts.Channels,
			Integration: opts.Integration,
		})
		if err != nil {
			return total, fmt.Errorf("evaluate: %w", err)
		}
	}

	if mode, _ := settings.Policy(); mode != rfim.ModeFlag {
		monitoring.Debugf("evaluate: policy %s overridden by flag policy for scoring", mode)
	}

	p, err := pool.New[float32](settings.Workers)
	if err != nil {
		return total, err
	}
	recorder := monitoring.NewRecorder(reg)

	ids := make([]string, opts.Streams)
	gens := make([]*synth.Generator, opts.Streams)
	var chainName string
	for i := range ids {
		ids[i] = fmt.Sprintf("stream-%02d", i)
		chain, err := buildChain[float32](settings)
		if err != nil {
			return total, fmt.Errorf("config: %w", err)
		}
		chainName = chain.Name()
		policy, err := rfim.NewPolicy[float32](rfim.ModeFlag, settings.Seed+uint64(i))
		if err != nil {
			return total, err
		}
		r, err := rfim.New[float32](chain, policy, rfim.WithObserver[float32](recorder))
		if err != nil {
			return total, err
		}
		if err = p.Register(ids[i], r); err != nil {
			return total, err
		}
		gens[i], err = synth.New(synth.Config{
			Mean:  opts.Mean,
			Sigma: opts.Sigma,
			Slope: opts.Slope,
			Seed:  settings.Seed + uint64(i)*7919 + 1,
		})
		if err != nil {
			return total, err
		}
	}

	rng := rand.New(rand.NewPCG(settings.Seed, uint64(opts.Streams)))
	perStream := make([]rfim.Metrics, opts.Streams)
	for b := 0; b < warmup+opts.Blocks; b++ {
		jobs := make([]pool.Job[float32], opts.Streams)
		truths := make([]*tf.FlagGrid, opts.Streams)
		for i := range ids {
			var sc *synth.Scenario[float32]
			if fb != nil && b >= warmup {
				sc, err = synth.NewChannelisedScenario[float32](gens[i], fb, opts.Spectra, pickTones(fb, rng, opts)...)
			} else if fb != nil {
				sc, err = synth.NewChannelisedScenario[float32](gens[i], fb, opts.Spectra)
			} else {
				sc, err = synth.NewScenario[float32](gens[i], opts.Spectra, opts.Channels)
			}
			if err != nil {
				return total, err
			}
			if b >= warmup {
				injectRFI(sc, rng, opts)
			}
			jobs[i] = pool.Job[float32]{Stream: ids[i], Block: sc.Block}
			truths[i] = sc.Truth
		}

		results, err := p.Run(ctx, jobs)
		if err != nil {
			return total, err
		}
		if b < warmup {
			continue
		}
		for i, res := range results {
			m, err := rfim.Compare(truths[i], res.Output.Flagged.Flags())
			if err != nil {
				return total, err
			}
			perStream[i].Add(m)
		}
	}

	fmt.Fprintf(out, "detectors: %s\n", chainName)
	for i, m := range perStream {
		fmt.Fprintf(out, "%s: %s\n", ids[i], m)
		total.Add(m)
	}
	fmt.Fprintf(out, "total: %s\n", total)
	return total, nil
}

// evaluateWarmup resolves opts.Warmup. AMPP flags nothing until it has seen
// max_history spectra, so a shorter explicit warmup is reported.
func evaluateWarmup(settings *config.Settings, opts EvaluateOptions) int {
	training := 0
	if settings.Ampp.Active {
		training = (settings.Ampp.MaxHistory + opts.Spectra - 1) / opts.Spectra
	}
	if opts.Warmup < 0 {
		return training
	}
	if opts.Warmup < training {
		monitoring.Logf("evaluate: ampp trains for %d spectra, %d warmup blocks of %d leave %d scored blocks in training",
			settings.Ampp.MaxHistory, opts.Warmup, opts.Spectra, min(training-opts.Warmup, opts.Blocks))
	}
	return opts.Warmup
}

// injectRFI adds the configured mix of RFI at random positions.
func injectRFI(sc *synth.Scenario[float32], rng *rand.Rand, opts EvaluateOptions) {
	amplitude := opts.Amplitude * opts.Sigma
	nspec, nchan := sc.Block.NumberOfSpectra(), sc.Block.NumberOfChannels()
	for i := 0; i < opts.Narrowband; i++ {
		sc.InjectChannel(rng.IntN(nchan), amplitude)
	}
	for i := 0; i < opts.Broadband; i++ {
		sc.InjectSpectrum(rng.IntN(nspec), amplitude)
	}
	for i := 0; i < opts.Spikes; i++ {
		sc.InjectSpike(rng.IntN(nspec), rng.IntN(nchan), 2*amplitude)
	}
}

// pickTones places opts.Tones tones on random channels. Each tone raises its
// channel by Amplitude*Sigma, matching the narrowband injection.
func pickTones(fb *dsp.Filterbank, rng *rand.Rand, opts EvaluateOptions) []synth.Tone {
	window := float64(2 * fb.Config().Channels)
	voltage := math.Sqrt(4 * opts.Amplitude * opts.Sigma / window)
	tones := make([]synth.Tone, opts.Tones)
	for i := range tones {
		// channel 0 is DC, where a tone has four times the power
		c := 1 + rng.IntN(max(fb.Config().Channels-1, 1))
		tones[i] = synth.Tone{Frequency: fb.Frequency(c), Amplitude: voltage}
	}
	return tones
}
