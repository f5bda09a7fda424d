package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/checklist"
	"github.com/nhle/hdcharts/internal/credential"
	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/events"
	"github.com/nhle/hdcharts/internal/httpapi"
	"github.com/nhle/hdcharts/internal/labs"
	"github.com/nhle/hdcharts/internal/logging"
)

const lockTimeout = 2 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN != ":memory:" {
		unlock, err := lockDatabase(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer unlock()
	}

	if cfg.Auth.UseKeyring {
		ring, err := credential.Open()
		if err != nil {
			return err
		}
		if err := ring.Apply(&cfg.Auth); err != nil {
			return fmt.Errorf("reading secrets from keyring: %w", err)
		}
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var hub *events.Hub
	if cfg.Events.Enabled {
		hub = events.NewHub(logger)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Verifier:   verifier,
		Checklists: checklist.NewService(st, cfg.Backups.ChecklistCapacity, logger),
		Documents:  document.NewService(st, cfg.Backups.DocumentCapacity, logger),
		Labs:       labs.NewService(st, logger),
		Events:     hub,
		Logger:     logger,
	})

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("driver", cfg.Database.Driver).
		Str("auth", cfg.Auth.Mode).
		Msg("starting server")
	return srv.ListenAndServe(ctx, cfg.Server)
}

// lockDatabase takes an exclusive lock next to the SQLite file so that two
// servers never write the same database.
func lockDatabase(ctx context.Context, dsn string) (func(), error) {
	lock := flock.New(dsn + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil && lockCtx.Err() == nil {
		return nil, fmt.Errorf("locking %s: %w", dsn, err)
	}
	if !ok {
		return nil, fmt.Errorf("database %s is in use by another hdcharts server", dsn)
	}
	return func() { _ = lock.Unlock() }, nil
}
