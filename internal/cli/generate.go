package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rrview/internal/config"
	"github.com/SmitUplenchwar2687/rrview/internal/generate"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

func newGenerateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample recordings and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate recording" to create a synthetic rrweb recording.
Use "generate config" to create an example config file.`,
	}

	opts := generate.DefaultOptions()
	recordingCmd := &cobra.Command{
		Use:   "recording",
		Short: "Generate a synthetic rrweb recording",
		Long: `Creates a recording of a minimal page followed by mouse, scroll and
click events.

Patterns:
  steady    Evenly spaced interactions
  burst     Clusters of interactions with quiet periods
  ramp      Interactions getting denser over time`,
		Example: `  rrview generate recording --output session.json --count 200
  rrview generate recording --output burst.json --pattern burst --duration 2m --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "recording.json"
			}

			rec, err := generate.Recording(opts)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating file: %w", err)
			}
			defer f.Close()

			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("writing recording: %w", err)
			}

			sum := recording.Summarize(rec)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d events to %s\n", sum.Events, output)
			fmt.Fprintf(out, "  Duration: %s\n", sum.Duration)
			fmt.Fprintf(out, "  Pattern:  %s\n", opts.Pattern)
			return nil
		},
	}

	recordingCmd.Flags().StringVar(&output, "output", "recording.json", "output file path")
	recordingCmd.Flags().IntVar(&opts.Count, "count", opts.Count, "number of interaction events to generate")
	recordingCmd.Flags().DurationVar(&opts.Duration, "duration", opts.Duration, "time span covered by the interactions")
	recordingCmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "interaction pattern (steady, burst, ramp)")
	recordingCmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 = time based)")
	recordingCmd.Flags().StringVar(&opts.Href, "href", opts.Href, "page URL written into the Meta event")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Generate an example config file",
		Long:  `Writes an example config. Paths ending in .yaml or .yml get YAML, anything else JSON.`,
		Example: `  rrview generate config --output rrview.json
  rrview generate config --output rrview.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "rrview.json"
			}
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", output)
			return nil
		},
	}

	configCmd.Flags().StringVar(&output, "output", "rrview.json", "output file path")

	cmd.AddCommand(recordingCmd, configCmd)
	return cmd
}
