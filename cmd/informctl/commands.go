package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/config"
	"github.com/noah-isme/inform-api/internal/database"
	"github.com/noah-isme/inform-api/internal/repository"
	"github.com/noah-isme/inform-api/internal/service"
)

type rootOptions struct {
	databaseURL string
	verbose     bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "informctl",
		Short:         "Operator tooling for the Inform review service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "database URL (defaults to INFORM_DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(
		migrateCommand(opts),
		recomputeCommand(opts),
	)
	return rootCmd
}

func migrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func recomputeCommand(opts *rootOptions) *cobra.Command {
	var submissionID, formID uint

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild submission aggregates from submitted reviews",
		Long: `Rebuild aggregates from durable review state. The operation is
idempotent and safe to rerun after a failed refresh.

Examples:
  informctl recompute --submission 42
  informctl recompute --form 7`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (submissionID == 0) == (formID == 0) {
				return errors.New("exactly one of --submission or --form is required")
			}

			db, err := opts.open()
			if err != nil {
				return err
			}
			aggregation := service.NewAggregationService(repository.NewAggregateRepository(db), nil, 0, opts.logger())

			if submissionID != 0 {
				aggregate, status, err := aggregation.Recompute(cmd.Context(), submissionID)
				if err != nil {
					return err
				}
				composite := "n/a"
				if aggregate.CompositeScore != nil {
					composite = fmt.Sprintf("%.4f", *aggregate.CompositeScore)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submission %d: reviews=%d composite=%s status=%s\n", submissionID, aggregate.ReviewsCount, composite, status)
				return nil
			}

			count, err := aggregation.RecomputeForm(cmd.Context(), formID)
			if err != nil {
				return fmt.Errorf("recomputed %d submissions before failing: %w", count, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "form %d: recomputed %d submissions\n", formID, count)
			return nil
		},
	}

	cmd.Flags().UintVar(&submissionID, "submission", 0, "submission id to recompute")
	cmd.Flags().UintVar(&formID, "form", 0, "recompute every submission of this form")
	return cmd
}

func (o *rootOptions) open() (*gorm.DB, error) {
	url := o.databaseURL
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		url = cfg.DatabaseURL
	}
	return database.Open(url, false)
}

func (o *rootOptions) logger() zerolog.Logger {
	if !o.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
