// Package history implements the history command for querying recorded events.
package history

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/monitor"
	"github.com/oselabs/webrelay/internal/transport"
)

// Flag variables for the history command.
var (
	historySource string
	historyTarget string
	historyType   string
	historySince  time.Duration
)

// HistoryCmd queries the relay's retained event history.
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the relay's event history",
	Long: "Query the relay's event history.\n\n" +
		"Lists retained integration events, newest last. Filters combine " +
		"with AND semantics; an unset filter matches everything. History " +
		"depth is bounded by the relay's retention window.",
	Example: `  # All retained events
  webrelay history

  # Dispatches from the CLI in the last ten minutes
  webrelay history --source cli --type dispatch --since 10m

  # Everything that failed
  webrelay history --type failed`,
	PreRunE: validateHistory,
	RunE:    runHistory,
}

func init() {
	HistoryCmd.Flags().StringVar(&historySource, "source", "", "Only events emitted by this actor")
	HistoryCmd.Flags().StringVar(&historyTarget, "target", "", "Only events aimed at this actor")
	HistoryCmd.Flags().StringVar(&historyType, "type", "", "Only events of this type (lifecycle, dispatch, receipt, processed, failed)")
	HistoryCmd.Flags().DurationVar(&historySince, "since", 0, "Only events newer than this age (e.g. 10m, 1h)")
}

func validateHistory(cmd *cobra.Command, args []string) error {
	if historyType != "" && !events.EventType(historyType).Valid() {
		return fmt.Errorf("unknown event type %q", historyType)
	}

	cmd.SilenceUsage = true
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	client := transport.NewClient(config.GetString("relay.base_url"),
		transport.WithAPIKey(config.GetString("relay.api_key")),
		transport.WithTimeout(config.GetDuration("relay.timeout")),
		transport.WithRetries(config.GetInt("relay.retries")),
	)

	filter := monitor.Filter{
		Source: historySource,
		Target: historyTarget,
		Type:   events.EventType(historyType),
	}
	if historySince > 0 {
		filter.Since = time.Now().Add(-historySince)
	}

	reports, err := client.History(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to fetch history; %w", err)
	}

	out := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(out, "no events match")
		return nil
	}

	for _, r := range reports {
		line := fmt.Sprintf("%s  %-9s %s", r.Timestamp.Format(time.RFC3339), r.Type, r.Source)
		if r.Target != "" {
			line += " -> " + r.Target
		}
		if r.LatencyMillis > 0 {
			line += fmt.Sprintf("  %gms", r.LatencyMillis)
		}
		line += "  " + r.CorrelationID
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d events\n", len(reports))

	return nil
}
