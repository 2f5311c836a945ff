// Package serve implements the serve command that runs the relay server.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oselabs/webrelay/internal/classifier"
	"github.com/oselabs/webrelay/internal/config"
	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/monitor"
	"github.com/oselabs/webrelay/internal/transport"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd runs the relay server in foreground mode.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server in foreground mode",
	Long: "Run the relay server in foreground mode.\n\n" +
		"The relay accepts dispatch requests from the CLI, forwards them to " +
		"the browser agent over a websocket, ingests event reports from all " +
		"actors and runs the integration monitor: flow tracking, per-actor " +
		"health, bottleneck detection and retention cleanup. The state " +
		"classifier runs against the probe's signal snapshot feed and " +
		"reports stable UI-surface transitions as events. Use standard " +
		"backgrounding methods like '&', 'nohup', or platform-specific " +
		"service runners (launchd, systemd) to run it in the background.",
	Example: `  # Run relay in foreground
  webrelay serve

  # Run relay in background
  webrelay serve &

  # Run relay on a different port
  WEBRELAY_SERVER_PORT=9040 webrelay serve`,
	PreRunE: validateServe,
	RunE:    runServe,
}

func validateServe(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	bus := events.NewBus(events.WithLogger(slog.Default()))
	defer func() { _ = bus.Close() }()

	mon := monitor.New(bus,
		monitor.WithLogger(slog.Default()),
		monitor.WithSweepInterval(config.GetDuration("monitor.sweep_interval")),
		monitor.WithLivenessWindow(config.GetDuration("monitor.liveness_window")),
		monitor.WithStuckAfter(config.GetDuration("monitor.stuck_after")),
		monitor.WithRetention(config.GetDuration("monitor.retention")),
		monitor.WithActors(events.ActorCLI, events.ActorRelay, events.ActorProbe, events.ActorSurface),
	)

	// The state classifier runs server-side against the probe's pushed
	// snapshot feed; its transitions land in the monitor like any other
	// actor's events.
	feed := classifier.NewSnapshotFeed(config.GetDuration("classifier.snapshot_max_age"))
	cls := classifier.New(feed,
		classifier.WithRecorder(mon),
		classifier.WithClassifierLogger(slog.Default()),
		classifier.WithDebounce(config.GetDuration("classifier.debounce")),
		classifier.WithPollInterval(config.GetDuration("classifier.poll_interval")),
		classifier.WithPassBudget(config.GetDuration("classifier.pass_budget")),
	)

	srv := transport.NewServer(transport.ServerConfig{
		Bind:   config.GetString("server.bind"),
		Port:   config.GetInt("server.port"),
		APIKey: config.GetString("server.api_key"),
	}, mon, bus,
		transport.WithServerLogger(slog.Default()),
		transport.WithSignalFeed(feed),
	)

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon.Start(ctx)
	defer mon.Stop()

	go cls.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	slog.Info("relay started",
		"bind", config.GetString("server.bind"),
		"port", config.GetInt("server.port"),
	)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay server error; %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown relay; %w", err)
	}

	return nil
}
