package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/punchamoorthee/ledgercore/internal/api"
	"github.com/punchamoorthee/ledgercore/internal/config"
	"github.com/punchamoorthee/ledgercore/internal/service"
	"github.com/punchamoorthee/ledgercore/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	var ledgerStore store.Store
	if cfg.DBSource != "" {
		pg, err := store.NewPostgresStore(context.Background(), cfg.DBSource)
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(context.Background()); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		ledgerStore = pg
	} else {
		logger.Warn("DB_SOURCE not set, using in-memory store; state is lost on exit")
		ledgerStore = store.NewMemoryStore()
	}

	transfers := service.NewTransferService(ledgerStore, logger, service.TransferOptions{
		MaxRetries:   cfg.TransferMaxRetries,
		Timeout:      cfg.TransferTimeout,
		RecordFailed: cfg.RecordFailedTransfers,
	})
	queries := service.NewQueryService(ledgerStore)

	handler := api.NewHandler(ledgerStore, transfers, queries)
	router := api.NewRouter(handler)

	logger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
