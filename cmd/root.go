package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configcmd "github.com/oselabs/webrelay/cmd/config"
	"github.com/oselabs/webrelay/cmd/history"
	"github.com/oselabs/webrelay/cmd/ping"
	"github.com/oselabs/webrelay/cmd/resolve"
	"github.com/oselabs/webrelay/cmd/send"
	"github.com/oselabs/webrelay/cmd/serve"
	"github.com/oselabs/webrelay/cmd/status"
	"github.com/oselabs/webrelay/cmd/train"
	versioncmd "github.com/oselabs/webrelay/cmd/version"
	"github.com/oselabs/webrelay/cmd/watch"
	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded after config loads
var logManager *logging.Manager

var webrelayCmd = &cobra.Command{
	Use:   "webrelay",
	Short: "Drive and monitor chat-style web AI surfaces through a relay",
	Long: "Webrelay drives chat-style web AI surfaces through a local relay server and a browser agent.\n\n" +
		"The relay server accepts automation commands, forwards them to the browser agent over " +
		"a websocket, and correlates the resulting acknowledgement events into flows. An " +
		"integration monitor tracks per-actor health, surfaces bottlenecks, and keeps a " +
		"queryable event history, while a state classifier reports whether the driven " +
		"surface is idle, busy, or showing an error.\n\n",
	PersistentPreRunE: runInitialize,
}

func init() {
	// Create logging Manager in bootstrap mode (stderr text only)
	logManager = logging.NewManager()

	webrelayCmd.AddCommand(serve.ServeCmd)
	webrelayCmd.AddCommand(send.SendCmd)
	webrelayCmd.AddCommand(ping.PingCmd)
	webrelayCmd.AddCommand(status.StatusCmd)
	webrelayCmd.AddCommand(history.HistoryCmd)
	webrelayCmd.AddCommand(watch.WatchCmd)
	webrelayCmd.AddCommand(resolve.ResolveCmd)
	webrelayCmd.AddCommand(train.TrainCmd)
	webrelayCmd.AddCommand(configcmd.ConfigCmd)
	webrelayCmd.AddCommand(versioncmd.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}

	// Upgrade logging after config is available
	logFile := config.GetPath("log_file")
	levelStr := config.GetString("log_level")
	level, ok := logging.ParseLevel(levelStr)
	if !ok {
		level = logging.DefaultLevel
		if levelStr != "" {
			logger.Warn("invalid log level configured, using default", "configured", levelStr, "default", "info")
		}
	}

	if err := logManager.Upgrade(logFile, level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
		// Continue in bootstrap mode
	}

	return nil
}

func Execute() error {
	webrelayCmd.SilenceErrors = true
	webrelayCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := webrelayCmd.Execute()

	if err != nil {
		cmd, _, _ := webrelayCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = webrelayCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
