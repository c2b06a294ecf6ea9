package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marqueehq/marquee/internal/mrqview/render"
	"github.com/marqueehq/marquee/internal/mrqview/sync"
)

func newRunCmd() *cobra.Command {
	var jsonLogs bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the viewer synchronization session",
		Long: `Run connects to the authority's push channel, starts the fallback
poller, and reports every render state transition until interrupted.
Rendering itself is left to the attached presentation surface; this agent
only maintains the state it should draw from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var handler slog.Handler
			if jsonLogs {
				handler = slog.NewJSONHandler(os.Stdout, nil)
			} else {
				handler = slog.NewTextHandler(os.Stdout, nil)
			}
			logger := slog.New(handler)

			session, err := sync.New(cfg, logger)
			if err != nil {
				return err
			}
			defer session.Teardown()

			unsubscribe := session.OnRenderStateChange(func(state render.State) {
				if state.ActiveContent != nil {
					logger.Info("now rendering",
						"contentId", state.ActiveContent.ID,
						"title", state.ActiveContent.Title,
						"type", state.ActiveContent.Type,
						"source", state.Source,
					)
					return
				}
				logger.Info("nothing scheduled",
					"reason", state.Reason,
					"source", state.Source,
				)
			})
			defer unsubscribe()

			session.OnConnectivityDegraded(func() {
				logger.Warn("connectivity degraded; showing last known content")
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := session.Connect(ctx); err != nil {
				return err
			}

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			<-shutdown

			logger.Info("shutting down viewer session")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
	return cmd
}
