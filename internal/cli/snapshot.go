package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rehearsal/api/internal/attendance"
	"rehearsal/api/internal/ledger"
)

// SnapshotRow is one data row with its 1-based sheet row number.
type SnapshotRow struct {
	Line           int    `json:"row"`
	Name           string `json:"name"`
	Date           string `json:"date"`
	TimeSlot       string `json:"timeSlot"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	SubmittedDate  string `json:"submittedDate"`
	SubmittedClock string `json:"submittedClock"`
}

func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "snapshot <activity>",
		Short:        "Print the ledger rows of one activity",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rootOpts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			snap, err := ledger.Load(cmd.Context(), h.Gateway, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "load "+args[0], err)
			}
			rows := make([]SnapshotRow, 0, len(snap.Rows))
			for i, r := range snap.Rows {
				if r.Blank() {
					continue
				}
				rows = append(rows, SnapshotRow{
					Line:           attendance.HeaderRows + i + 1,
					Name:           r.PersonName,
					Date:           r.SessionDate,
					TimeSlot:       r.TimeSlot,
					Status:         r.Status,
					Reason:         r.Reason,
					SubmittedDate:  r.SubmittedDate,
					SubmittedClock: r.SubmittedClock,
				})
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, rows, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROW\tNAME\tDATE\tSLOT\tSTATUS\tREASON\tSUBMITTED")
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s %s\n",
						r.Line, r.Name, r.Date, r.TimeSlot, r.Status, r.Reason, r.SubmittedDate, r.SubmittedClock)
				}
				tw.Flush()
			})
		},
	}
}
