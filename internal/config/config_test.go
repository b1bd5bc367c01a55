package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/rfim/internal/rfim"
)

func resetViper() {
	viper.Reset()
}

// writeXDGConfig writes content as the user config file under a temporary HOME.
func writeXDGConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return tmpDir
}

// chdir switches to dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	})
}

func TestInit_WithDefaults(t *testing.T) {
	resetViper()
	writeXDGConfig(t, DefaultConfig)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"flag_policy", false},
		{"policy", "replace"},
		{"seed", 0},
		{"workers", 4},
		{"ampp.active", false},
		{"ampp.channel_rejection_rms", 10.0},
		{"ampp.spectrum_rejection_rms", 6.0},
		{"ampp.max_history", 10000},
		{"ampp.zero_dm", false},
		{"ampp.nbands", 8},
		{"iqrm.active", true},
		{"iqrm.radius", 5},
		{"iqrm.threshold", 3.0},
		{"iqrm.edge_channels", 0},
		{"sum_threshold.its_cutoff", 5.0},
		{"sum_threshold.base_sensitivity", 1.0},
		{"channel_mask.ranges", ""},
		{"debug", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v (%T), want %v", tt.key, got, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	chdir(t, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("Init() did not create config file at %s", configPath)
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	resetViper()
	tmpDir := writeXDGConfig(t, "workers: 2")
	chdir(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("workers: 8"), 0644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("workers"); got != 8 {
		t.Errorf("viper.GetInt(workers) = %d, want 8 (local config)", got)
	}
}

func TestInit_DotConfigTakesPrecedence(t *testing.T) {
	resetViper()
	tmpDir := writeXDGConfig(t, DefaultConfig)
	chdir(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("policy: flag"), 0644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte("policy: last_unflagged"), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := viper.GetString("policy"); got != "last_unflagged" {
		t.Errorf("policy = %q, want last_unflagged from .config.yaml", got)
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	resetViper()
	writeXDGConfig(t, "invalid: yaml: content: [[[")

	if err := Init(); err == nil {
		t.Error("Init() should return error for invalid YAML")
	}
}

func TestGet_ReturnsSettings(t *testing.T) {
	resetViper()
	writeXDGConfig(t, DefaultConfig)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	settings, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if settings.PolicyName != "replace" {
		t.Errorf("Settings.PolicyName = %q, want replace", settings.PolicyName)
	}
	if settings.Workers != 4 {
		t.Errorf("Settings.Workers = %d, want 4", settings.Workers)
	}
	if settings.AmppConfig() != rfim.DefaultAmppConfig() {
		t.Errorf("AmppConfig() = %+v, want defaults", settings.AmppConfig())
	}
	if settings.IqrmConfig() != rfim.DefaultIqrmConfig() {
		t.Errorf("IqrmConfig() = %+v, want defaults", settings.IqrmConfig())
	}
	if got := settings.SumThresholdConfig().Windows; !slices.Equal(got, rfim.DefaultSumThresholdConfig().Windows) {
		t.Errorf("SumThreshold windows = %v", got)
	}
	if settings.Debug {
		t.Errorf("Settings.Debug = %v, want false", settings.Debug)
	}
}

func TestGet_AllFields(t *testing.T) {
	resetViper()

	customConfig := `flag_policy: true
policy: last_unflagged
seed: 77
workers: 16
ampp:
  active: true
  channel_rejection_rms: 8
  spectrum_rejection_rms: 4.5
  max_history: 500
  zero_dm: true
  nbands: 16
iqrm:
  active: false
  radius: 9
  threshold: 2.5
  edge_channels: 3
sum_threshold:
  active: false
  its_cutoff: 6
  base_sensitivity: 1.5
  window: [1, 4, 16]
channel_mask:
  active: true
  ranges: "0-3,100"
debug: true
`
	writeXDGConfig(t, customConfig)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	settings, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	mode, err := settings.Policy()
	if err != nil || mode != rfim.ModeFlag {
		t.Errorf("Policy() = %v, %v; want flag (flag_policy overrides)", mode, err)
	}
	if settings.Seed != 77 {
		t.Errorf("Settings.Seed = %d, want 77", settings.Seed)
	}
	if settings.Workers != 16 {
		t.Errorf("Settings.Workers = %d, want 16", settings.Workers)
	}

	wantAmpp := rfim.AmppConfig{ChannelRejectionRMS: 8, SpectrumRejectionRMS: 4.5, MaxHistory: 500, ZeroDM: true, Bands: 16}
	if !settings.Ampp.Active || settings.AmppConfig() != wantAmpp {
		t.Errorf("ampp = %+v active=%v, want %+v", settings.AmppConfig(), settings.Ampp.Active, wantAmpp)
	}

	wantIqrm := rfim.IqrmConfig{Radius: 9, Threshold: 2.5, EdgeChannels: 3}
	if settings.Iqrm.Active || settings.IqrmConfig() != wantIqrm {
		t.Errorf("iqrm = %+v active=%v, want %+v", settings.IqrmConfig(), settings.Iqrm.Active, wantIqrm)
	}

	st := settings.SumThresholdConfig()
	if settings.SumThreshold.Active || st.ItsCutoff != 6 || st.BaseSensitivity != 1.5 || !slices.Equal(st.Windows, []int{1, 4, 16}) {
		t.Errorf("sum_threshold = %+v active=%v", st, settings.SumThreshold.Active)
	}

	ranges, err := settings.ChannelRanges()
	if err != nil {
		t.Fatalf("ChannelRanges() error = %v", err)
	}
	if !settings.ChannelMask.Active || !slices.Equal(ranges, []rfim.ChannelRange{{Start: 0, End: 4}, {Start: 100, End: 101}}) {
		t.Errorf("channel_mask = %v active=%v", ranges, settings.ChannelMask.Active)
	}
	if !settings.Debug {
		t.Errorf("Settings.Debug = %v, want true", settings.Debug)
	}
}

func TestGet_InvalidSettings(t *testing.T) {
	resetViper()
	writeXDGConfig(t, "workers: 0\n")

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := Get(); err == nil || !strings.Contains(err.Error(), "workers") {
		t.Errorf("Get() error = %v, want workers violation", err)
	}
}

func TestEnsureConfigExists_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config")

	if err := ensureConfigExists(configPath); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(configPath, "config.yaml"))
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != DefaultConfig {
		t.Errorf("config content does not match DefaultConfig")
	}
}

func TestEnsureConfigExists_DoesNotOverwrite(t *testing.T) {
	tmpDir := t.TempDir()

	configFile := filepath.Join(tmpDir, "config.yaml")
	existingContent := "existing: true"
	if err := os.WriteFile(configFile, []byte(existingContent), 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	if err := ensureConfigExists(tmpDir); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != existingContent {
		t.Errorf("ensureConfigExists() overwrote existing config")
	}
}

func TestEnsureConfigExists_WriteError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping test when running as root")
	}

	configPath := filepath.Join(t.TempDir(), "readonly")
	if err := os.MkdirAll(configPath, 0555); err != nil {
		t.Fatalf("failed to create readonly dir: %v", err)
	}
	defer func() {
		if err := os.Chmod(configPath, 0755); err != nil {
			t.Logf("failed to restore permissions: %v", err)
		}
	}()

	if err := ensureConfigExists(filepath.Join(configPath, "subdir")); err == nil {
		t.Error("ensureConfigExists() should return error for read-only directory")
	}
}

func TestConstants(t *testing.T) {
	if AppName != "rfim" {
		t.Errorf("AppName = %q, want %q", AppName, "rfim")
	}
	if ConfigType != "yaml" {
		t.Errorf("ConfigType = %q, want %q", ConfigType, "yaml")
	}
}

func TestDefaultConfig_ContainsExpectedKeys(t *testing.T) {
	for _, key := range []string{
		"flag_policy:", "policy:", "seed:", "workers:",
		"ampp:", "channel_rejection_rms:", "spectrum_rejection_rms:", "max_history:", "zero_dm:", "nbands:",
		"iqrm:", "radius:", "edge_channels:",
		"sum_threshold:", "its_cutoff:", "base_sensitivity:", "window:",
		"channel_mask:", "ranges:", "debug:",
	} {
		if !strings.Contains(DefaultConfig, key) {
			t.Errorf("DefaultConfig missing key %q", key)
		}
	}
}

func TestSettings_Policy(t *testing.T) {
	tests := []struct {
		name       string
		flagPolicy bool
		policy     string
		want       rfim.Mode
		wantErr    bool
	}{
		{"replace", false, "replace", rfim.ModeReplace, false},
		{"flag", false, "flag", rfim.ModeFlag, false},
		{"last unflagged", false, "last_unflagged", rfim.ModeLastUnflagged, false},
		{"flag_policy overrides", true, "replace", rfim.ModeFlag, false},
		{"flag_policy overrides invalid", true, "bogus", rfim.ModeFlag, false},
		{"invalid", false, "bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Settings{FlagPolicy: tt.flagPolicy, PolicyName: tt.policy}
			got, err := s.Policy()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Policy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Policy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettings_Validate_ValidSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSettings_Validate_Fields(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantKey string
	}{
		{"policy", func(s *Settings) { s.PolicyName = "drop" }, "policy"},
		{"workers low", func(s *Settings) { s.Workers = 0 }, "workers"},
		{"workers high", func(s *Settings) { s.Workers = 5000 }, "workers"},
		{"ampp channel rms", func(s *Settings) { s.Ampp.ChannelRejectionRMS = 0 }, "ampp.channel_rejection_rms"},
		{"ampp spectrum rms", func(s *Settings) { s.Ampp.SpectrumRejectionRMS = -1 }, "ampp.spectrum_rejection_rms"},
		{"ampp history", func(s *Settings) { s.Ampp.MaxHistory = 0 }, "ampp.max_history"},
		{"ampp bands", func(s *Settings) { s.Ampp.Bands = 0 }, "ampp.nbands"},
		{"iqrm radius", func(s *Settings) { s.Iqrm.Radius = 0 }, "iqrm.radius"},
		{"iqrm threshold", func(s *Settings) { s.Iqrm.Threshold = 0 }, "iqrm.threshold"},
		{"iqrm edges", func(s *Settings) { s.Iqrm.EdgeChannels = -2 }, "iqrm.edge_channels"},
		{"st cutoff", func(s *Settings) { s.SumThreshold.ItsCutoff = 0 }, "sum_threshold.its_cutoff"},
		{"st sensitivity", func(s *Settings) { s.SumThreshold.BaseSensitivity = 0 }, "sum_threshold.base_sensitivity"},
		{"st no windows", func(s *Settings) { s.SumThreshold.Windows = nil }, "sum_threshold.window"},
		{"st unsorted windows", func(s *Settings) { s.SumThreshold.Windows = []int{4, 2} }, "sum_threshold.window"},
		{"channel ranges", func(s *Settings) { s.ChannelMask.Ranges = "9-3" }, "channel_mask.ranges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Validate() should return error")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Validate() error should mention %q, got: %v", tt.wantKey, err)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := &Settings{
		PolicyName: "bad", // invalid
		Workers:    0,     // invalid
	}

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() should return error for multiple invalid fields")
	}

	errStr := err.Error()
	for _, substr := range []string{
		"policy",
		"workers",
		"ampp.channel_rejection_rms",
		"ampp.max_history",
		"iqrm.radius",
		"sum_threshold.its_cutoff",
		"sum_threshold.window",
	} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("Validate() error should mention %q, got: %v", substr, errStr)
		}
	}
}

// validSettings returns a Settings struct with all valid values
func validSettings() *Settings {
	ampp := rfim.DefaultAmppConfig()
	iqrm := rfim.DefaultIqrmConfig()
	st := rfim.DefaultSumThresholdConfig()
	return &Settings{
		PolicyName: "replace",
		Workers:    4,
		Ampp: AmppSettings{
			ChannelRejectionRMS:  ampp.ChannelRejectionRMS,
			SpectrumRejectionRMS: ampp.SpectrumRejectionRMS,
			MaxHistory:           ampp.MaxHistory,
			Bands:                ampp.Bands,
		},
		Iqrm: IqrmSettings{
			Active:    true,
			Radius:    iqrm.Radius,
			Threshold: iqrm.Threshold,
		},
		SumThreshold: SumThresholdSettings{
			Active:          true,
			ItsCutoff:       st.ItsCutoff,
			BaseSensitivity: st.BaseSensitivity,
			Windows:         st.Windows,
		},
	}
}
