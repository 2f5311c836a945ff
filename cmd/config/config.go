// Package config provides the config parent command and subcommands.
package config

import (
	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/cmd/config/subcommands"
)

// ConfigCmd is the parent command for all config-related subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage webrelay configuration",
	Long: "Manage webrelay configuration.\n\n" +
		"The config command allows you to view the webrelay configuration. " +
		"Configuration is read from a YAML file located at " +
		"~/.config/webrelay/config.yaml by default, with WEBRELAY_* " +
		"environment variables taking precedence.",
}

func init() {
	ConfigCmd.AddCommand(subcommands.ShowCmd)
	ConfigCmd.AddCommand(subcommands.PathCmd)
}
