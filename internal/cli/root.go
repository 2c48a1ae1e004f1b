package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root rrview command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rrview",
		Short: "Preview rrweb session recordings",
		Long: `rrview loads rrweb session recordings from files or URLs, validates them
and plays them in the browser or the terminal.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newValidateCmd(),
		newInspectCmd(),
		newPlayCmd(),
		newGenerateCmd(),
	)

	return root
}
