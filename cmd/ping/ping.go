// Package ping implements the ping command for checking relay reachability.
package ping

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/transport"
)

// PingCmd measures round-trip time to the relay server.
var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check relay server reachability",
	Long: "Check relay server reachability.\n\n" +
		"Sends a health probe to the configured relay server and reports " +
		"whether it responded, together with the round-trip latency. An " +
		"unreachable relay exits with a non-zero status but is reported as " +
		"a measurement, not an error.",
	Example: `  # Ping the configured relay
  webrelay ping

  # Ping a different relay
  WEBRELAY_RELAY_BASE_URL=http://10.0.0.5:8931 webrelay ping`,
	PreRunE: validatePing,
	RunE:    runPing,
}

func validatePing(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runPing(cmd *cobra.Command, args []string) error {
	// Single attempt: retries with backoff would pollute the reported
	// latency.
	client := transport.NewClient(config.GetString("relay.base_url"),
		transport.WithAPIKey(config.GetString("relay.api_key")),
		transport.WithTimeout(config.GetDuration("relay.timeout")),
		transport.WithRetries(1),
	)

	result := client.Ping(cmd.Context())
	if !result.Success {
		return fmt.Errorf("relay unreachable at %s", config.GetString("relay.base_url"))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "relay ok: %s (%.1fms)\n",
		config.GetString("relay.base_url"),
		float64(result.Latency.Microseconds())/1000.0)
	return nil
}
