package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rehearsal/api/internal/app"
	"rehearsal/api/internal/catalog"
	"rehearsal/api/internal/dedupe"
	"rehearsal/api/internal/ledger"
	"rehearsal/api/internal/lock"
)

// NewSubmitCommand creates the submit command, which runs the same pipeline
// as POST /api/submit. With REDIS_URL set it takes the shared ledger lock,
// so it is safe to run next to live API replicas.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var in app.SubmitInput

	cmd := &cobra.Command{
		Use:          "submit",
		Short:        "Record one attendance submission in the ledger",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), rootOpts, cmd.OutOrStdout(), in)
		},
	}
	cmd.Flags().StringVar(&in.Activity, "activity", "", "activity (ledger tab)")
	cmd.Flags().StringVar(&in.Name, "name", "", "member name")
	cmd.Flags().StringVar(&in.Date, "date", "", "session date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.TimeSlot, "slot", "", "time slot (HH:MM)")
	cmd.Flags().StringVar(&in.Status, "status", "present", "requested status")
	cmd.Flags().StringVar(&in.Reason, "reason", "", "reason for excused or fixed-late requests")
	cmd.Flags().StringVar(&in.RequestID, "request-id", "", "idempotency key (needs REDIS_URL)")
	return cmd
}

func runSubmit(ctx context.Context, opts *RootOptions, w io.Writer, in app.SubmitInput) error {
	cfg := opts.config()
	h, err := opts.openLedger(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	resolver, err := opts.resolver()
	if err != nil {
		return err
	}
	classifier, err := opts.classifier()
	if err != nil {
		return err
	}

	deps := app.Deps{
		Ledger:     h.Gateway,
		Catalog:    catalog.NewRegistry(h.Options, ledger.Options{Activities: cfg.Activities, TimeSlots: cfg.TimeSlots}),
		Lock:       lock.NewLocal(),
		Resolver:   resolver,
		Classifier: classifier,
		Now:        opts.env.Now,
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := dedupe.Connect(cfg.RedisURL)
		if err != nil {
			return WrapExitError(ExitCommandError, "redis", err)
		}
		defer client.Close()
		deps.Lock = lock.NewRedis(client, cfg.LockTTL)
		deps.Requests = dedupe.NewRedisStore(client, cfg.IdempotencyTTL)
	}

	service, err := app.NewService(deps)
	if err != nil {
		return WrapExitError(ExitCommandError, "setup", err)
	}
	result, err := service.Submit(ctx, in)
	if err != nil {
		var domainErr *app.DomainError
		if errors.As(err, &domainErr) {
			return WrapExitError(ExitFailure, domainErr.Code, fmt.Errorf("%s (details: %v)", domainErr.Message, domainErr.Details))
		}
		return WrapExitError(ExitFailure, "submit", err)
	}

	return emit(w, opts.Format, result, func(w io.Writer) {
		replayed := ""
		if result.Replayed {
			replayed = " (replayed)"
		}
		fmt.Fprintf(w, "%s: %s %s -> %s (%s) at row %d, superseded %d%s\n",
			result.SubmissionID, result.Activity, in.Name, result.FinalStatus, result.StatusLabel,
			result.TargetRow, result.Superseded, replayed)
	})
}
