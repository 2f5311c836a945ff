package subcommands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
)

// PathCmd prints the path of the loaded configuration file.
var PathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display the path of the loaded configuration file",
	Long: "Display the path of the loaded configuration file.\n\n" +
		"Prints the absolute path of the config file webrelay loaded at startup, " +
		"or a note when no file was found and built-in defaults are in effect.",
	Example: `  # Show which config file is in use
  webrelay config path`,
	PreRunE: validatePath,
	RunE:    runPath,
}

func validatePath(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runPath(cmd *cobra.Command, args []string) error {
	path := config.ConfigFilePath()
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no config file loaded (defaults in effect)")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
