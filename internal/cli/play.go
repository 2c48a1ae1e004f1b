package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/replay"
)

func newPlayCmd() *cobra.Command {
	var (
		opts       appOptions
		speed      float64
		types      []string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "play <recording>",
		Short: "Play a recording in the terminal",
		Long: `Plays a recording through the same load, validate and mount path as the
viewer, printing one line per event. Gaps between events are honoured,
scaled by --speed.

Speed: 0 = instant, 1 = real-time, 10 = 10x`,
		Example: `  rrview play session.json
  rrview play session.json --speed 10 --types IncrementalSnapshot
  rrview play https://example.com/recording.json --speed 0 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			filter := &replay.Filter{}
			for _, t := range types {
				et, err := recording.ParseEventType(t)
				if err != nil {
					return err
				}
				filter.Types = append(filter.Types, et)
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			clk := clock.NewRealClock()
			// Only touched by the playing goroutine until it exits.
			var writeErr error
			widget := replay.New(clk, speed, filter, func(f replay.Frame) {
				if writeErr != nil {
					return
				}
				if outputJSON {
					writeErr = enc.Encode(f)
					return
				}
				_, writeErr = fmt.Fprintf(out, "  %10s  %s\n", f.Offset.Round(time.Millisecond), f.Description)
			})

			// Autoplay is driven below once the instance is known.
			cfg.Player.AutoPlay = false
			a, err := newApp(cfg, clk, widget)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := a.open(ctx, args[0]); err != nil {
				return err
			}
			if perr := a.player.Err(); perr != nil {
				return perr
			}
			inst, ok := a.player.Instance().(*replay.Instance)
			if !ok {
				return fmt.Errorf("%s has fewer than %d events, nothing to play", args[0], recording.MinPlayableEvents)
			}

			if !outputJSON {
				fmt.Fprintf(out, "Playing %s at %gx speed...\n\n", args[0], speed)
			}
			inst.Play()
			awaitPlayback(ctx, a, inst.Done())
			if writeErr != nil {
				return fmt.Errorf("writing frame: %w", writeErr)
			}

			sum := inst.Summary()
			if outputJSON {
				return enc.Encode(map[string]any{"summary": sum})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Playback Summary ---")
			fmt.Fprintf(out, "  Events:         %d\n", sum.Events)
			fmt.Fprintf(out, "  Shown:          %d\n", sum.Emitted)
			fmt.Fprintf(out, "  Recording time: %s\n", sum.Duration)
			fmt.Fprintf(out, "  Wall time:      %s\n", sum.WallDuration.Round(time.Millisecond))
			fmt.Fprintf(out, "  Completed:      %t\n", sum.Completed)
			return nil
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "only print these event types (names or numbers, comma-separated)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output frames as JSON lines")

	return cmd
}

// awaitPlayback blocks until done is closed. On cancellation the instance is
// torn down through the adapter that owns it.
func awaitPlayback(ctx context.Context, a *app, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		a.player.Close()
	}
}
