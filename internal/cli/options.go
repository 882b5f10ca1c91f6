package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func NewOptionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "options",
		Short:        "List the activities and time slots members can submit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rootOpts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			opts, err := h.Options.Options(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "read options", err)
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, opts, func(w io.Writer) {
				fmt.Fprintf(w, "activities: %s\n", strings.Join(opts.Activities, ", "))
				fmt.Fprintf(w, "time slots: %s\n", strings.Join(opts.TimeSlots, ", "))
			})
		},
	}
}
