package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sweeptrace/internal/source"
)

// NewPortsCommand creates the ports command.
func NewPortsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ports",
		Short:         "List serial devices usable as a source",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := source.Ports()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list serial ports", err)
			}

			formatter := newFormatter(cmd, rootOpts)
			if formatter.JSON() {
				if ports == nil {
					ports = []string{}
				}
				return formatter.Success(map[string]any{"ports": ports})
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
