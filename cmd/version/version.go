package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/version"
)

var short bool

// VersionCmd displays version and build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version and build information",
	Long: "Display version and build information.\n\n" +
		"Shows the semantic version, VCS commit, build date, and Go " +
		"toolchain of the current webrelay binary.",
	Example: `  # Full build information
  webrelay version

  # Just the version number, for scripting
  webrelay version --short`,
	PreRunE: validateVersion,
	RunE:    runVersion,
}

func init() {
	VersionCmd.Flags().BoolVar(&short, "short", false, "print only the version number")
}

func validateVersion(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	if short {
		fmt.Fprintln(cmd.OutOrStdout(), info.Version)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), info.String())
	return nil
}
