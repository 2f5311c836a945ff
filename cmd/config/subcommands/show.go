package subcommands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oselabs/webrelay/internal/config"
)

var showRaw bool

// ShowCmd displays the current configuration.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current configuration",
	Long: "Display the current configuration.\n\n" +
		"Shows the current webrelay configuration values. By default, shows " +
		"the effective configuration with defaults applied. Use --raw to show " +
		"only the values explicitly set in the config file.",
	Example: `  # Show effective configuration
  webrelay config show

  # Show only explicitly set values
  webrelay config show --raw`,
	PreRunE: validateShow,
	RunE:    runShow,
}

func init() {
	ShowCmd.Flags().BoolVar(&showRaw, "raw", false, "Show only explicitly configured values (no defaults)")
}

func validateShow(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if showRaw {
		return showRawConfig(out)
	}
	return showEffectiveConfig(out)
}

func showRawConfig(out io.Writer) error {
	path := config.ConfigFilePath()
	if path == "" {
		fmt.Fprintln(out, "# No configuration file found; defaults in effect")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file; %w", err)
	}

	fmt.Fprintf(out, "# Configuration file: %s\n", path)
	fmt.Fprintln(out, string(data))
	return nil
}

func showEffectiveConfig(out io.Writer) error {
	data, err := yaml.Marshal(config.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to format configuration; %w", err)
	}

	fmt.Fprintln(out, "# Effective configuration (with defaults)")
	if path := config.ConfigFilePath(); path != "" {
		fmt.Fprintf(out, "# Config file: %s\n", path)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
