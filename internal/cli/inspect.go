package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/replay"
)

func newInspectCmd() *cobra.Command {
	var (
		opts       appOptions
		events     int
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <recording>",
		Short: "Summarize a recording",
		Long: `Prints event counts per type, the time span covered, whether timestamps
are in order and whether the recording has enough events to play.`,
		Example: `  rrview inspect session.json
  rrview inspect https://example.com/recording.json --events 20
  rrview inspect session.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			loader := newStandaloneLoader(cfg, clock.NewRealClock())
			e, err := loadArg(cmd.Context(), loader, args[0])
			if err != nil {
				return err
			}

			sum := recording.Summarize(e.Recording)
			all := e.Recording.Events()
			if events < 0 {
				events = 0
			}
			if events > len(all) {
				events = len(all)
			}
			descriptions := make([]string, 0, events)
			for _, ev := range all[:events] {
				descriptions = append(descriptions, replay.Describe(ev))
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"source":  args[0],
					"summary": sum,
					"events":  descriptions,
				})
			}

			fmt.Fprintf(out, "Recording: %s\n", args[0])
			fmt.Fprintf(out, "  Events:     %d\n", sum.Events)
			if sum.Events > 0 {
				fmt.Fprintf(out, "  Start:      %s\n", sum.Start.Format("2006-01-02 15:04:05.000"))
				fmt.Fprintf(out, "  Duration:   %s\n", sum.Duration)
			}
			fmt.Fprintf(out, "  In order:   %t\n", sum.Monotonic)
			fmt.Fprintf(out, "  Playable:   %t\n", sum.Playable)

			if len(sum.PerType) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  Per type:")
				types := make([]string, 0, len(sum.PerType))
				for t := range sum.PerType {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Fprintf(out, "    %-20s %d\n", t, sum.PerType[t])
				}
			}

			if len(descriptions) > 0 {
				fmt.Fprintln(out)
				for i, d := range descriptions {
					fmt.Fprintf(out, "  %4d  %s\n", i, d)
				}
			}
			return nil
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&events, "events", 0, "also describe the first N events")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the summary as JSON")

	return cmd
}
