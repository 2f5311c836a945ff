// Package train implements the train command for enabling training mode.
package train

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/transport"
)

// TrainCmd enables a training session for a website.
var TrainCmd = &cobra.Command{
	Use:   "train <website>",
	Short: "Enable training mode for a website",
	Long: "Enable training mode for a website.\n\n" +
		"Asks the relay to open a training session for the given website. " +
		"Enabling is idempotent: repeating the command returns the existing " +
		"session for that website.",
	Example: `  # Enable training for a site
  webrelay train chat.example.com`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateTrain,
	RunE:    runTrain,
}

func validateTrain(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if args[0] == "" {
		return fmt.Errorf("website must not be empty")
	}
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	client := transport.NewClient(config.GetString("relay.base_url"),
		transport.WithAPIKey(config.GetString("relay.api_key")),
		transport.WithTimeout(config.GetDuration("relay.timeout")),
	)

	ack, err := client.EnableTrainingMode(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "training enabled for %s (session %s, %d existing patterns)\n",
		ack.Website, ack.SessionID, ack.ExistingPatterns)
	return nil
}
