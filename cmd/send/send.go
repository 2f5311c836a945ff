// Package send implements the send command for driving a web AI surface.
package send

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/transport"
)

// Flag variables for the send command.
var (
	sendProject  string
	sendChat     string
	sendDownload string
	sendTimeout  time.Duration
)

// SendCmd dispatches a prompt through the relay to the browser agent.
var SendCmd = &cobra.Command{
	Use:   "send <prompt>",
	Short: "Send a prompt to the web AI surface",
	Long: "Send a prompt to the web AI surface.\n\n" +
		"Runs the full automation round trip: select the target project, " +
		"optionally select a chat, fill the prompt into the surface's input, " +
		"and wait for the response. All steps share one correlation id so the " +
		"relay's monitor tracks the round trip as a single flow.\n\n" +
		"With --download, the named generated file is fetched after the " +
		"response arrives.",
	Example: `  # Send a prompt to a project
  webrelay send "summarize this quarter's incidents" --project ops

  # Continue an existing chat
  webrelay send "and the previous quarter?" --project ops --chat "incident review"

  # Fetch a generated file after the response
  webrelay send "render the report as PDF" --project ops --download report.pdf`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSend,
	RunE:    runSend,
}

func init() {
	SendCmd.Flags().StringVar(&sendProject, "project", "", "Project to select before sending")
	SendCmd.Flags().StringVar(&sendChat, "chat", "", "Chat title to select (optional, defaults to the active chat)")
	SendCmd.Flags().StringVar(&sendDownload, "download", "", "Filename of a generated file to fetch after the response")
	SendCmd.Flags().DurationVar(&sendTimeout, "timeout", 0, "Override the configured request timeout")
}

func validateSend(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if sendProject == "" {
		return fmt.Errorf("--project is required")
	}

	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	timeout := sendTimeout
	if timeout == 0 {
		timeout = config.GetDuration("relay.timeout")
	}

	client := transport.NewClient(config.GetString("relay.base_url"),
		transport.WithAPIKey(config.GetString("relay.api_key")),
		transport.WithTimeout(timeout),
		transport.WithRetries(config.GetInt("relay.retries")),
		transport.WithRateLimit(config.GetFloat64("relay.rate_limit"), config.GetInt("relay.rate_burst")),
	)

	target := transport.Target{
		ExtensionID: config.GetString("agent.extension_id"),
		TabID:       config.GetInt("agent.tab_id"),
	}

	wf := transport.Workflow{
		ProjectName: sendProject,
		ChatTitle:   sendChat,
		PromptText:  args[0],
	}

	result, err := client.RunWorkflow(cmd.Context(), target, wf)
	if result != nil {
		printSteps(cmd, result)
	}
	if err != nil {
		return fmt.Errorf("workflow failed; %w", err)
	}

	if sendDownload != "" {
		_, err := client.Dispatch(cmd.Context(), target,
			transport.DownloadFile{Filename: sendDownload}, result.CorrelationID)
		if err != nil {
			return fmt.Errorf("download failed; %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "download requested: %s\n", sendDownload)
	}

	return nil
}

func printSteps(cmd *cobra.Command, result *transport.WorkflowResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "correlation id: %s\n", result.CorrelationID)
	for _, step := range result.Steps {
		status := "ok"
		if step.Error != "" {
			status = "failed: " + step.Error
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %8.1fms  %s\n",
			step.Action, float64(step.Duration.Microseconds())/1000.0, status)
	}
}
