package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/conorfennell/part5srs/internal/corpus"
	"github.com/conorfennell/part5srs/internal/session"
	"github.com/conorfennell/part5srs/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			syncer := a.syncer()

			if a.cfg.Corpus.SyncInterval > 0 {
				sched := corpus.NewScheduler(syncer)
				if err := sched.Start(ctx, a.cfg.Corpus.SyncInterval); err != nil {
					return err
				}
				defer sched.Stop()
				a.logger.Info("Periodic sync enabled", "interval", a.cfg.Corpus.SyncInterval)
			}

			manager := session.NewManager(a.db, a.sessionOptions()...)
			server := web.NewServer(a.db, manager, syncer, a.logger, web.WithMaxItems(a.cfg.Session.MaxItems))

			// Abandoned sessions still hold buffered answers; finalize them.
			maxAge := a.cfg.Server.SessionMaxAge
			sweeper := gocron.NewScheduler(time.UTC)
			if _, err := sweeper.Every(maxAge / 2).WaitForSchedule().Do(func() {
				server.SweepSessions(ctx, maxAge)
			}); err != nil {
				return fmt.Errorf("failed to schedule session sweep: %w", err)
			}
			sweeper.StartAsync()
			defer sweeper.Stop()

			httpServer := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           server,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Starting server", "addr", a.cfg.Server.Addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			// Flush whatever live sessions still buffer.
			server.SweepSessions(shutdownCtx, -1)
			return nil
		},
	}
}
