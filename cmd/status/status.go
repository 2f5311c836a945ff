// Package status implements the status command for inspecting monitor state.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/monitor"
	"github.com/oselabs/webrelay/internal/transport"
)

var (
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
	colorRed    = lipgloss.Color("1")
	colorGray   = lipgloss.Color("8")
	colorCyan   = lipgloss.Color("6")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorGray)
)

// StatusCmd displays component health and active bottlenecks.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display component health and active bottlenecks",
	Long: "Display component health and active bottlenecks.\n\n" +
		"Fetches the relay monitor's health report: per-actor error rates, " +
		"average latencies and liveness, the set of unresolved bottlenecks, " +
		"and the number of flows still in progress.",
	Example: `  # Show the current health report
  webrelay status`,
	PreRunE: validateStatus,
	RunE:    runStatus,
}

func validateStatus(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := transport.NewClient(config.GetString("relay.base_url"),
		transport.WithAPIKey(config.GetString("relay.api_key")),
		transport.WithTimeout(config.GetDuration("relay.timeout")),
		transport.WithRetries(config.GetInt("relay.retries")),
	)

	report, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch health report; %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Components"))
	for _, c := range report.Components {
		fmt.Fprintf(out, "  %-16s %s  errors %5.1f%%  latency %8.1fms  %s\n",
			c.Component,
			renderStatus(c.Status),
			c.ErrorRate*100,
			float64(c.AverageLatency.Microseconds())/1000.0,
			dimStyle.Render(renderHeartbeat(c.LastHeartbeat)),
		)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Bottlenecks"))
	if len(report.ActiveBottlenecks) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  none"))
	}
	for _, b := range report.ActiveBottlenecks {
		fmt.Fprintf(out, "  %s %s %s\n", renderSeverity(b.Severity), b.Component, b.Description)
		fmt.Fprintf(out, "    %s\n", dimStyle.Render("id "+b.ID+"  fix: "+b.SuggestedFix))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %d in progress, %d events retained\n",
		titleStyle.Render("Flows:"), report.FlowsInProgress, report.EventsRetained)

	return nil
}

func renderStatus(s monitor.HealthStatus) string {
	padded := fmt.Sprintf("%-8s", s)
	switch s {
	case monitor.StatusHealthy:
		return okStyle.Render(padded)
	case monitor.StatusDegraded:
		return warnStyle.Render(padded)
	case monitor.StatusCritical:
		return critStyle.Render(padded)
	default:
		return dimStyle.Render(padded)
	}
}

func renderSeverity(s monitor.Severity) string {
	label := "[" + strings.ToUpper(string(s)) + "]"
	switch s {
	case monitor.SeverityCritical, monitor.SeverityHigh:
		return critStyle.Render(label)
	case monitor.SeverityMedium:
		return warnStyle.Render(label)
	default:
		return dimStyle.Render(label)
	}
}

func renderHeartbeat(t time.Time) string {
	if t.IsZero() {
		return "never seen"
	}
	return "seen " + time.Since(t).Round(time.Second).String() + " ago"
}
