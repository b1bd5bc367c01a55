// cmd/detectors.go
package cmd

import (
	"github.com/ColonelBlimp/rfim/internal/config"
	"github.com/ColonelBlimp/rfim/internal/monitoring"
	"github.com/ColonelBlimp/rfim/internal/rfim"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

// buildChain creates a fresh instance of every active detector, in the order
// channel mask, AMPP, IQRM, SumThreshold. Each stream needs its own chain
// because AMPP is stateful.
func buildChain[T tf.Sample](s *config.Settings) (*rfim.Chain[T], error) {
	var detectors []rfim.Detector[T]

	if s.ChannelMask.Active {
		ranges, err := s.ChannelRanges()
		if err != nil {
			return nil, err
		}
		d, err := rfim.NewChannelMask[T](ranges)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}
	if s.Ampp.Active {
		d, err := rfim.NewAmpp[T](s.AmppConfig())
		if err != nil {
			return nil, err
		}
		d.SetBandpassHandler(func(bp rfim.Bandpass) {
			monitoring.Debugf("ampp: new bandpass over %d channels, rms=%.4g", len(bp.Values), bp.RMS)
		})
		detectors = append(detectors, d)
	}
	if s.Iqrm.Active {
		d, err := rfim.NewIqrm[T](s.IqrmConfig())
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}
	if s.SumThreshold.Active {
		d, err := rfim.NewSumThreshold[T](s.SumThresholdConfig())
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}

	return rfim.NewChain(detectors...), nil
}
