package rfim

import "errors"

var (
	// ErrDetectorRequired indicates a nil detector was passed to New
	ErrDetectorRequired = errors.New("detector instance is required")
	// ErrInvalidMode indicates an unknown policy mode
	ErrInvalidMode = errors.New("unknown policy mode")
	// ErrInvalidRadius indicates the IQRM radius must be positive
	ErrInvalidRadius = errors.New("iqrm radius must be positive")
	// ErrInvalidIqrmThreshold indicates the IQRM threshold must be positive
	ErrInvalidIqrmThreshold = errors.New("iqrm threshold must be positive")
	// ErrInvalidEdgeChannels indicates edge channels must be non-negative
	ErrInvalidEdgeChannels = errors.New("iqrm edge channels must be non-negative")
	// ErrInvalidRejectionRMS indicates AMPP rejection multipliers must be positive
	ErrInvalidRejectionRMS = errors.New("ampp rejection rms must be positive")
	// ErrInvalidMaxHistory indicates AMPP max history must be positive
	ErrInvalidMaxHistory = errors.New("ampp max history must be positive")
	// ErrInvalidBands indicates the AMPP mini-band count must be positive
	ErrInvalidBands = errors.New("ampp number of bands must be positive")
	// ErrInvalidCutoff indicates the SumThreshold cutoff must be positive
	ErrInvalidCutoff = errors.New("sum threshold cutoff must be positive")
	// ErrInvalidSensitivity indicates the SumThreshold base sensitivity must be positive
	ErrInvalidSensitivity = errors.New("sum threshold base sensitivity must be positive")
	// ErrInvalidWindow indicates SumThreshold windows must be positive and ascending
	ErrInvalidWindow = errors.New("sum threshold windows must be positive and strictly ascending")
	// ErrInvalidChannelRange indicates a channel mask range has End < Start or negative Start
	ErrInvalidChannelRange = errors.New("channel range must satisfy 0 <= start <= end")
)
