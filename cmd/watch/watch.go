// Package watch implements the watch command for streaming live notifications.
package watch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/events"
)

var watchKinds []string

// WatchCmd streams monitor notifications from the relay over a websocket.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live monitor notifications",
	Long: "Stream live monitor notifications.\n\n" +
		"Connects to the relay's websocket endpoint and prints notifications " +
		"as they happen: recorded events, completed and failed flows, detected " +
		"and resolved bottlenecks, component health changes and surface state " +
		"transitions. Runs until interrupted.",
	Example: `  # Watch everything
  webrelay watch

  # Only flow terminations and bottlenecks
  webrelay watch --kind flow.completed --kind flow.failed --kind bottleneck.detected`,
	PreRunE: validateWatch,
	RunE:    runWatch,
}

func init() {
	WatchCmd.Flags().StringArrayVar(&watchKinds, "kind", nil, "Notification kinds to print (repeatable; default all)")
}

func validateWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	wsURL, err := websocketURL(config.GetString("relay.base_url"))
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to relay websocket; %w", err)
	}
	defer conn.Close()

	// Close the connection when the command context is cancelled so the
	// blocking read below unblocks.
	go func() {
		<-cmd.Context().Done()
		conn.Close()
	}()

	wanted := make(map[string]bool, len(watchKinds))
	for _, k := range watchKinds {
		wanted[k] = true
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %s\n", wsURL)

	for {
		var n events.Notification
		if err := conn.ReadJSON(&n); err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return fmt.Errorf("websocket read failed; %w", err)
		}

		if len(wanted) > 0 && !wanted[string(n.Kind)] {
			continue
		}

		payload, _ := json.Marshal(n.Payload)
		fmt.Fprintf(out, "%s  %-22s %s\n",
			n.Timestamp.Format(time.TimeOnly), n.Kind, string(payload))
	}
}

// websocketURL rewrites the relay's http(s) base URL to its ws(s)
// websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid relay base url %q; %w", base, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
