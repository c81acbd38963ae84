package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conorfennell/part5srs/internal/config"
	"github.com/conorfennell/part5srs/internal/corpus"
	"github.com/conorfennell/part5srs/internal/logging"
	"github.com/conorfennell/part5srs/internal/session"
	"github.com/conorfennell/part5srs/internal/storage"
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *storage.DB
}

func (a *app) syncer() *corpus.Syncer {
	s := corpus.NewSyncer(a.db, a.cfg.Corpus.ReposDir, a.logger)
	s.SetConcurrency(a.cfg.Corpus.Concurrency)
	return s
}

func (a *app) sessionOptions() []session.Option {
	return []session.Option{
		session.WithParams(&a.cfg.Scheduler),
		session.WithLogger(a.logger),
		session.WithBatchSize(a.cfg.Session.BatchSize),
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "part5srs",
		Short:        "Spaced-repetition review for TOEIC Part 5 questions",
		Long:         "part5srs schedules TOEIC Part 5 grammar questions with the SM-2 algorithm.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), ".env")
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			db, err := storage.Open(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			logger.Debug("Database opened", "driver", cfg.DB.Driver)

			a.cfg, a.logger, a.db = cfg, logger, db
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newSyncCmd(a),
		newSourceCmd(a),
		newDueCmd(a),
		newReviewCmd(a),
		newStatsCmd(a),
		newResetCmd(a),
	)
	return root
}
