// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/rfim/internal/rfim"
)

const (
	AppName       = "rfim"
	ConfigType    = "yaml"
	DefaultConfig = `# RFI mitigation configuration

# Handling of bad samples
flag_policy: false        # true forces the flag policy (data untouched, flags returned)
policy: "replace"         # replace | flag | last_unflagged
seed: 0                   # PRNG seed for replacement noise (runs are reproducible)

# Scheduling
workers: 4                # Maximum number of streams processed concurrently

# Adaptive bandpass detector (stateful, per stream)
ampp:
  active: false
  channel_rejection_rms: 10.0   # Sample threshold above the bandpass, in running RMS
  spectrum_rejection_rms: 6.0   # Spectrum mean drift threshold, in bandpass RMS
  max_history: 10000            # Training length and running average length, in spectra
  zero_dm: false                # Subtract the residual mean from accepted spectra
  nbands: 8                     # Number of mini-bands used for noise estimation

# Inter-quartile range channel mitigation
iqrm:
  active: true
  radius: 5                     # Largest channel lag compared
  threshold: 3.0                # Outlier threshold in robust sigmas
  edge_channels: 0              # Channels always masked at each band edge

# SumThreshold time/frequency detector
sum_threshold:
  active: true
  its_cutoff: 5.0               # Single-sample threshold, in block standard deviations
  base_sensitivity: 1.0         # Multiplier applied to the block standard deviation
  window: [1, 2, 4, 6, 8, 16, 32, 64]

# Static channel mask, e.g. "0-15,1008-1023"
channel_mask:
  active: false
  ranges: ""

# Output
debug: false              # Enable debug output
`
)

// AmppSettings configures the AMPP detector
type AmppSettings struct {
	Active               bool    `mapstructure:"active"`
	ChannelRejectionRMS  float64 `mapstructure:"channel_rejection_rms"`
	SpectrumRejectionRMS float64 `mapstructure:"spectrum_rejection_rms"`
	MaxHistory           int     `mapstructure:"max_history"`
	ZeroDM               bool    `mapstructure:"zero_dm"`
	Bands                int     `mapstructure:"nbands"`
}

// IqrmSettings configures the IQRM detector
type IqrmSettings struct {
	Active       bool    `mapstructure:"active"`
	Radius       int     `mapstructure:"radius"`
	Threshold    float64 `mapstructure:"threshold"`
	EdgeChannels int     `mapstructure:"edge_channels"`
}

// SumThresholdSettings configures the SumThreshold detector
type SumThresholdSettings struct {
	Active          bool    `mapstructure:"active"`
	ItsCutoff       float64 `mapstructure:"its_cutoff"`
	BaseSensitivity float64 `mapstructure:"base_sensitivity"`
	Windows         []int   `mapstructure:"window"`
}

// ChannelMaskSettings configures the static channel mask
type ChannelMaskSettings struct {
	Active bool   `mapstructure:"active"`
	Ranges string `mapstructure:"ranges"`
}

// Settings holds all application configuration
type Settings struct {
	// Policy
	FlagPolicy bool   `mapstructure:"flag_policy"`
	PolicyName string `mapstructure:"policy"`
	Seed       uint64 `mapstructure:"seed"`

	// Scheduling
	Workers int `mapstructure:"workers"`

	// Detectors
	Ampp         AmppSettings         `mapstructure:"ampp"`
	Iqrm         IqrmSettings         `mapstructure:"iqrm"`
	SumThreshold SumThresholdSettings `mapstructure:"sum_threshold"`
	ChannelMask  ChannelMaskSettings  `mapstructure:"channel_mask"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers the default value of every key with viper.
func SetDefaults() {
	ampp := rfim.DefaultAmppConfig()
	iqrm := rfim.DefaultIqrmConfig()
	st := rfim.DefaultSumThresholdConfig()

	viper.SetDefault("flag_policy", false)
	viper.SetDefault("policy", rfim.ModeReplace.String())
	viper.SetDefault("seed", 0)
	viper.SetDefault("workers", 4)
	viper.SetDefault("ampp.active", false)
	viper.SetDefault("ampp.channel_rejection_rms", ampp.ChannelRejectionRMS)
	viper.SetDefault("ampp.spectrum_rejection_rms", ampp.SpectrumRejectionRMS)
	viper.SetDefault("ampp.max_history", ampp.MaxHistory)
	viper.SetDefault("ampp.zero_dm", ampp.ZeroDM)
	viper.SetDefault("ampp.nbands", ampp.Bands)
	viper.SetDefault("iqrm.active", true)
	viper.SetDefault("iqrm.radius", iqrm.Radius)
	viper.SetDefault("iqrm.threshold", iqrm.Threshold)
	viper.SetDefault("iqrm.edge_channels", iqrm.EdgeChannels)
	viper.SetDefault("sum_threshold.active", true)
	viper.SetDefault("sum_threshold.its_cutoff", st.ItsCutoff)
	viper.SetDefault("sum_threshold.base_sensitivity", st.BaseSensitivity)
	viper.SetDefault("sum_threshold.window", st.Windows)
	viper.SetDefault("channel_mask.active", false)
	viper.SetDefault("channel_mask.ranges", "")
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/rfim/
func Init() error {
	SetDefaults()

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Policy returns the configured policy mode. flag_policy overrides policy.
func (s *Settings) Policy() (rfim.Mode, error) {
	if s.FlagPolicy {
		return rfim.ModeFlag, nil
	}
	return rfim.ParseMode(s.PolicyName)
}

// AmppConfig maps the ampp section onto the detector configuration
func (s *Settings) AmppConfig() rfim.AmppConfig {
	return rfim.AmppConfig{
		ChannelRejectionRMS:  s.Ampp.ChannelRejectionRMS,
		SpectrumRejectionRMS: s.Ampp.SpectrumRejectionRMS,
		MaxHistory:           s.Ampp.MaxHistory,
		ZeroDM:               s.Ampp.ZeroDM,
		Bands:                s.Ampp.Bands,
	}
}

// IqrmConfig maps the iqrm section onto the detector configuration
func (s *Settings) IqrmConfig() rfim.IqrmConfig {
	return rfim.IqrmConfig{
		Radius:       s.Iqrm.Radius,
		Threshold:    s.Iqrm.Threshold,
		EdgeChannels: s.Iqrm.EdgeChannels,
	}
}

// SumThresholdConfig maps the sum_threshold section onto the detector configuration
func (s *Settings) SumThresholdConfig() rfim.SumThresholdConfig {
	return rfim.SumThresholdConfig{
		ItsCutoff:       s.SumThreshold.ItsCutoff,
		BaseSensitivity: s.SumThreshold.BaseSensitivity,
		Windows:         s.SumThreshold.Windows,
	}
}

// ChannelRanges parses the channel_mask ranges
func (s *Settings) ChannelRanges() ([]rfim.ChannelRange, error) {
	return rfim.ParseChannelRanges(s.ChannelMask.Ranges)
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Policy
	if _, err := s.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("policy must be one of replace, flag, last_unflagged, got %q", s.PolicyName))
	}

	// Scheduling
	if s.Workers < 1 || s.Workers > 1024 {
		errs = append(errs, fmt.Errorf("workers must be between 1 and 1024, got %d", s.Workers))
	}

	// AMPP
	if s.Ampp.ChannelRejectionRMS <= 0 {
		errs = append(errs, fmt.Errorf("ampp.channel_rejection_rms must be positive, got %v", s.Ampp.ChannelRejectionRMS))
	}
	if s.Ampp.SpectrumRejectionRMS <= 0 {
		errs = append(errs, fmt.Errorf("ampp.spectrum_rejection_rms must be positive, got %v", s.Ampp.SpectrumRejectionRMS))
	}
	if s.Ampp.MaxHistory < 1 {
		errs = append(errs, fmt.Errorf("ampp.max_history must be at least 1, got %d", s.Ampp.MaxHistory))
	}
	if s.Ampp.Bands < 1 {
		errs = append(errs, fmt.Errorf("ampp.nbands must be at least 1, got %d", s.Ampp.Bands))
	}

	// IQRM
	if s.Iqrm.Radius < 1 {
		errs = append(errs, fmt.Errorf("iqrm.radius must be at least 1, got %d", s.Iqrm.Radius))
	}
	if s.Iqrm.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("iqrm.threshold must be positive, got %v", s.Iqrm.Threshold))
	}
	if s.Iqrm.EdgeChannels < 0 {
		errs = append(errs, fmt.Errorf("iqrm.edge_channels must not be negative, got %d", s.Iqrm.EdgeChannels))
	}

	// SumThreshold
	if s.SumThreshold.ItsCutoff <= 0 {
		errs = append(errs, fmt.Errorf("sum_threshold.its_cutoff must be positive, got %v", s.SumThreshold.ItsCutoff))
	}
	if s.SumThreshold.BaseSensitivity <= 0 {
		errs = append(errs, fmt.Errorf("sum_threshold.base_sensitivity must be positive, got %v", s.SumThreshold.BaseSensitivity))
	}
	if len(s.SumThreshold.Windows) == 0 {
		errs = append(errs, errors.New("sum_threshold.window must list at least one window"))
	}
	for i, w := range s.SumThreshold.Windows {
		if w < 1 || (i > 0 && w <= s.SumThreshold.Windows[i-1]) {
			errs = append(errs, fmt.Errorf("sum_threshold.window must be positive and strictly ascending, got %v", s.SumThreshold.Windows))
			break
		}
	}

	// Channel mask
	if _, err := s.ChannelRanges(); err != nil {
		errs = append(errs, fmt.Errorf("channel_mask.ranges: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
