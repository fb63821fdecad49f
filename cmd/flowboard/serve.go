package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tverenko/flowboard/internal/assistant"
	"github.com/tverenko/flowboard/internal/board"
	"github.com/tverenko/flowboard/internal/config"
	"github.com/tverenko/flowboard/internal/db"
	"github.com/tverenko/flowboard/internal/hook"
	"github.com/tverenko/flowboard/internal/model"
	"github.com/tverenko/flowboard/internal/monitor"
	"github.com/tverenko/flowboard/internal/store"
	"github.com/tverenko/flowboard/internal/web"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the flowboard daemon",
		Long:         "Run the HTTP API and, when enabled, the background staleness monitor.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink, closeFn, err := openStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer closeFn()

			coder, reviewer, err := assistant.New(ctx, cfg.Assistant)
			if err != nil {
				return err
			}
			if !cfg.Assistant.ReviewEnabled {
				reviewer = nil
			}

			hooks := hook.NewRegistry()
			if err := registerHooks(hooks); err != nil {
				return err
			}

			b, err := board.New(ctx, board.Config{
				WIPLimit: cfg.Board.WIPLimit,
				Coder:    coder,
				Reviewer: reviewer,
				Store:    sink,
				Hooks:    hooks,
			})
			if err != nil {
				return err
			}

			if cfg.Monitor.Enabled {
				m := monitor.New(b, hooks,
					time.Duration(cfg.Monitor.ThresholdSec)*time.Second,
					time.Duration(cfg.Monitor.PollSec)*time.Second)
				go func() {
					_ = m.Run(ctx)
				}()
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      web.NewServer(b).Routes(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.Addr).Msg("flowboard daemon listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	return cmd
}

// registerHooks wires the built-in listeners. Registration happens before
// the board serves traffic.
func registerHooks(hooks *hook.Registry) error {
	if err := hooks.Register(hook.EventTransition, hook.LogTransition); err != nil {
		return err
	}
	if err := hooks.Register(hook.EventDone, func(_ context.Context, t model.Task) error {
		log.Info().Str("task", t.ID).Msg("task completed")
		return nil
	}); err != nil {
		return err
	}
	if err := hooks.Register(hook.EventRejected, func(_ context.Context, t model.Task) error {
		log.Info().Str("task", t.ID).Int("retry", t.RetryCount).Msg("task sent back to backlog")
		return nil
	}); err != nil {
		return err
	}
	return hooks.Register(hook.EventStaleTask, func(_ context.Context, t model.Task) error {
		log.Warn().Str("task", t.ID).Str("title", t.Title).Msg("task is stale")
		return nil
	})
}

func openStore(cfg config.StorageConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case "none":
		return nil, func() {}, nil
	case "file":
		return store.NewFileStore(cfg.Path), func() {}, nil
	case "sqlite":
		sqlDB, err := db.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLiteStore(sqlDB), func() { _ = sqlDB.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
