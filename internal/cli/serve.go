package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr string
		opts appOptions
	)

	cmd := &cobra.Command{
		Use:   "serve [recording...]",
		Short: "Start the rrview viewer server",
		Long: `Starts an HTTP server hosting the rrweb player.

Recordings given as arguments are loaded before the server starts; a
path is loaded as a file, anything with a scheme as a URL.

Endpoints:
  GET  /                          Viewer page
  GET  /health                    Health check
  GET  /api/state                 Viewer and player state
  PUT  /api/mode                  Switch between file and url mode
  GET  /api/files                 Uploaded files
  POST /api/files                 Upload a recording (multipart field "file")
  POST /api/files/{id}/select     Show a previously uploaded file
  GET  /api/urls                  URL history
  POST /api/urls                  Load a recording from {"url": ...}
  POST /api/urls/select           Show a previously loaded URL
  GET  /api/recording             Recording currently shown
  POST /api/player/reset          Retry after a playback failure
  WS   /ws                        Player channel`,
		Example: `  rrview serve
  rrview serve --addr :9090 session.json
  rrview serve --mode url https://example.com/recording.json
  rrview serve --storage redis --redis-host localhost:6379 --cache-ttl 1h
  rrview serve --config rrview.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}

			clk := clock.NewRealClock()
			hub := server.NewHub()
			a, err := newApp(cfg, clk, hub)
			if err != nil {
				return err
			}
			defer a.Close()

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for _, arg := range args {
				if _, err := a.open(ctx, arg); err != nil {
					return err
				}
				log.Printf("loaded %s", arg)
			}
			if len(args) > 0 && cmd.Flags().Changed("mode") {
				// Preloading switched modes; go back to the one asked for.
				if err := a.viewer.SetMode(ctx, cfg.DefaultMode); err != nil {
					return err
				}
			}

			srv := server.New(addr, server.Options{
				Viewer: a.viewer,
				Store:  a.store,
				Player: a.player,
				Hub:    hub,
				Clock:  clk,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Println("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	opts.addFlags(cmd)

	return cmd
}
