package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
)

type validateResult struct {
	Source string `json:"source"`
	Valid  bool   `json:"valid"`
	Events int    `json:"events,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var (
		opts       appOptions
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "validate <recording>...",
		Short: "Check that files or URLs hold valid rrweb recordings",
		Long: `Loads each recording exactly as the viewer would and reports whether it
is a valid rrweb event array.

Exit status:
  0  every recording is valid
  2  a link is not http:// or https://
  3  a URL could not be fetched or did not return JSON
  4  a file could not be read as JSON
  5  the JSON is not a valid rrweb recording`,
		Example: `  rrview validate session.json
  rrview validate https://example.com/recording.json other.json --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			loader := newStandaloneLoader(cfg, clock.NewRealClock())
			out := cmd.OutOrStdout()

			var (
				results  []validateResult
				firstErr error
			)
			for _, arg := range args {
				res := validateResult{Source: arg}
				e, err := loadArg(cmd.Context(), loader, arg)
				if err != nil {
					res.Error = err.Error()
					if firstErr == nil {
						firstErr = fmt.Errorf("%s: %w", arg, err)
					}
				} else {
					res.Valid = true
					res.Events = e.Events
				}
				results = append(results, res)

				if outputJSON {
					continue
				}
				if res.Valid {
					fmt.Fprintf(out, "OK    %s (%d events)\n", arg, res.Events)
				} else {
					fmt.Fprintf(out, "FAIL  %s: %s\n", arg, res.Error)
				}
			}

			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			}
			if firstErr != nil {
				cmd.SilenceErrors = true
			}
			return firstErr
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}
