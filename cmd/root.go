// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/rfim/internal/config"
	"github.com/ColonelBlimp/rfim/internal/monitoring"
)

var rootCmd = &cobra.Command{
	Use:   "rfim",
	Short: "Radio frequency interference mitigation for spectrometer data",
	Long: `rfim detects and removes radio frequency interference from time-frequency
data blocks using adaptive bandpass (AMPP), IQRM, SumThreshold and static
channel mask detectors. Bad samples are flagged or replaced with matched noise.

Without a subcommand, rfim validates the configuration and prints the
resulting detector chain.`,
	SilenceUsage: true,
	RunE:         runShowConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().BoolP("flag-policy", "F", false, "flag bad samples instead of replacing them")
	rootCmd.PersistentFlags().Uint64P("seed", "s", 0, "seed for the replacement noise generator")
	rootCmd.PersistentFlags().IntP("workers", "w", 4, "maximum number of streams processed concurrently")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	bindFlags()
}

// bindFlags binds the persistent flags to their config keys.
// viper.Reset drops bindings, so tests call this again after resetting.
func bindFlags() {
	_ = viper.BindPFlag("flag_policy", rootCmd.PersistentFlags().Lookup("flag-policy"))
	_ = viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings reads and validates the configuration and applies the debug switch.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	monitoring.SetDebug(settings.Debug)
	return settings, nil
}

func runShowConfig(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	mode, err := settings.Policy()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	chain, err := buildChain[float32](settings)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config:    %s\n", viper.ConfigFileUsed())
	fmt.Fprintf(out, "policy:    %s\n", mode)
	fmt.Fprintf(out, "seed:      %d\n", settings.Seed)
	fmt.Fprintf(out, "workers:   %d\n", settings.Workers)
	fmt.Fprintf(out, "detectors: %s\n", chain.Name())
	return nil
}
