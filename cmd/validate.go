// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/acpipe/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the daemon configuration",
	Long: `Load and validate the configuration without starting the daemon.

On success the effective configuration, with defaults and ACPIPE_*
environment overrides applied, is printed as YAML.

Examples:
  acpipe validate -c /etc/acpipe/config.yml
  ACPIPE_LOG_LEVEL=debug acpipe validate`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return writeConfigYAML(out, cfg)
}

func writeConfigYAML(out io.Writer, cfg *config.GlobalConfig) error {
	doc := struct {
		ACPipe *config.GlobalConfig `yaml:"acpipe"`
	}{ACPipe: cfg}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
