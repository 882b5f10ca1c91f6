package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rehearsal/api/internal/ledger"
)

// NewInitCommand creates the init command, which adds activity tabs to a
// SQLite ledger. Spreadsheet tabs are managed in Google Sheets itself.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "init <activity>...",
		Short:        "Create activity tabs in a SQLite ledger",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rootOpts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			local, ok := h.Gateway.(*ledger.SQLiteLedger)
			if !ok {
				return WrapExitError(ExitCommandError, "init", fmt.Errorf("only the sqlite backend can create tabs"))
			}
			created := make(map[string]int64, len(args))
			for _, activity := range args {
				id, err := local.EnsureSheet(cmd.Context(), activity, ledger.DefaultHeader)
				if err != nil {
					return WrapExitError(ExitFailure, "create "+activity, err)
				}
				created[activity] = id
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, created, func(w io.Writer) {
				for _, activity := range args {
					fmt.Fprintf(w, "%s: sheet %d\n", activity, created[activity])
				}
			})
		},
	}
}
