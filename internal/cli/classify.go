package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rehearsal/api/internal/attendance"
)

type ClassifyResult struct {
	FinalStatus    attendance.Status   `json:"finalStatus"`
	StatusLabel    string              `json:"statusLabel"`
	Category       attendance.Category `json:"category"`
	Rule           string              `json:"rule"`
	ElapsedMinutes float64             `json:"elapsedMinutes"`
}

// NewClassifyCommand creates the classify command. It never touches the
// ledger.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	var date, slot, status, at string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show which status a submission would get",
		Long: `Classify a submission without writing it.

--at takes a clock time (HH:MM) on the session date or an RFC 3339 instant;
it defaults to now.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(rootOpts, cmd.OutOrStdout(), date, slot, status, at)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "session date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&slot, "slot", "", "time slot (HH:MM)")
	cmd.Flags().StringVar(&status, "status", "present", "requested status")
	cmd.Flags().StringVar(&at, "at", "", "submission time")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

func runClassify(opts *RootOptions, w io.Writer, date, slot, status, at string) error {
	resolver, err := opts.resolver()
	if err != nil {
		return err
	}
	classifier, err := opts.classifier()
	if err != nil {
		return err
	}
	requested, err := attendance.ParseStatus(status)
	if err != nil || !requested.Requestable() {
		return WrapExitError(ExitCommandError, "status", fmt.Errorf("%q cannot be requested", status))
	}
	now, err := submissionTime(opts.env.Now(), resolver, date, at)
	if err != nil {
		return err
	}
	elapsed, err := resolver.Elapsed(now, date, slot)
	if err != nil {
		return WrapExitError(ExitCommandError, "classify", err)
	}

	decision := classifier.Classify(requested, "", elapsed)
	result := ClassifyResult{
		FinalStatus:    decision.Status,
		StatusLabel:    decision.Status.Label(),
		Category:       decision.Category,
		Rule:           decision.Rule,
		ElapsedMinutes: elapsed,
	}
	return emit(w, opts.Format, result, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%s) %s, rule %s, %.1f min after start\n",
			result.FinalStatus, result.StatusLabel, result.Category, result.Rule, result.ElapsedMinutes)
	})
}

func submissionTime(now time.Time, resolver *attendance.Resolver, date, at string) (time.Time, error) {
	at = strings.TrimSpace(at)
	if at == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		return t, nil
	}
	t, err := resolver.ScheduledStart(date, at)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "--at", err)
	}
	return t, nil
}
