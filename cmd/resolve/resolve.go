// Package resolve implements the resolve command for clearing bottlenecks.
package resolve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/transport"
)

// ResolveCmd marks a detected bottleneck as resolved.
var ResolveCmd = &cobra.Command{
	Use:   "resolve <bottleneck-id>",
	Short: "Mark a bottleneck as resolved",
	Long: "Mark a bottleneck as resolved.\n\n" +
		"Resolved bottlenecks stay in the monitor's records with a resolution " +
		"timestamp until retention cleanup removes them. Resolving an unknown " +
		"or already-resolved bottleneck is a no-op.",
	Example: `  # Resolve a bottleneck reported by 'webrelay status'
  webrelay resolve 2f1c9d3a-8f4e-4b6a-9c2d-b1e7a0f53c44`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateResolve,
	RunE:    runResolve,
}

func validateResolve(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	client := transport.NewClient(config.GetString("relay.base_url"),
		transport.WithAPIKey(config.GetString("relay.api_key")),
		transport.WithTimeout(config.GetDuration("relay.timeout")),
		transport.WithRetries(config.GetInt("relay.retries")),
	)

	resolved, err := client.ResolveBottleneck(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve bottleneck; %w", err)
	}

	if !resolved {
		fmt.Fprintf(cmd.OutOrStdout(), "bottleneck %s not found or already resolved\n", args[0])
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "bottleneck %s resolved\n", args[0])
	return nil
}
