// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/acpipe/internal/config"
)

var (
	// Global flags
	configFile string
	pidFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "acpipe",
	Short: "acpipe - local integrity report channel",
	Long: `acpipe receives fixed-format binary integrity reports from a privileged
local component over a Unix domain socket, decodes them and forwards them
to structured logs and, optionally, Kafka.

Without --config the built-in defaults apply; ACPIPE_* environment
variables override both.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (default: pid_file from config)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig loads --config, or the defaults when it is not set.
func loadConfig() (*config.GlobalConfig, error) {
	if configFile == "" {
		return config.Default()
	}
	return config.Load(configFile)
}

// resolvePIDFile returns --pidfile, falling back to the configured path.
func resolvePIDFile() (string, error) {
	if pidFile != "" {
		return pidFile, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.PIDFile, nil
}
