// Package main is the bos-api entry point: the REST and websocket
// front door that lets callers create sessions and templates, inspect
// components, and watch a session's progress live.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hpe-cray/bos/internal/config"
	"github.com/hpe-cray/bos/internal/eventbus"
	"github.com/hpe-cray/bos/internal/migrate"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/server"
	"github.com/hpe-cray/bos/internal/store"
	"github.com/hpe-cray/bos/internal/store/etcdstore"
	"github.com/hpe-cray/bos/internal/store/mongostore"
	"github.com/hpe-cray/bos/internal/store/sqlstore"
	pgdriver "github.com/hpe-cray/bos/internal/store/sqlstore/driver/postgres"
	sqlitedriver "github.com/hpe-cray/bos/internal/store/sqlstore/driver/sqlite"
	"github.com/hpe-cray/bos/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logging.Default("bos-api")
	lg.Info("starting bos-api", "env", cfg.Env, "driver", cfg.DatabaseDriver)

	backend, err := openStore(cfg, lg.Logger)
	if err != nil {
		lg.Logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	if err := migrate.Run(context.Background(), backend, lg); err != nil {
		lg.Logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	var tokens store.TokenStore
	if len(cfg.EtcdEndpoints) > 0 {
		ts, err := etcdstore.NewStore(etcdstore.Config{
			Endpoints:   cfg.EtcdEndpoints,
			DialTimeout: 5 * time.Second,
		}, lg.Logger)
		if err != nil {
			lg.Logger.Error("open etcd token store", "error", err)
			os.Exit(1)
		}
		tokens = ts
	}

	var events *eventbus.Bus
	if cfg.RedisURL != "" {
		events, err = eventbus.New(cfg.RedisURL)
		if err != nil {
			lg.Logger.Warn("eventbus unavailable, session monitor will have nothing to stream", "error", err)
		}
	}

	h, err := server.NewHandler(server.Config{
		Store:        backend,
		Tokens:       tokens,
		Options:      options.New(backend, 0),
		Events:       events,
		Log:          lg,
		LivenessPath: cfg.LivenessPath,
		Version:      firstNonEmpty(os.Getenv("BOS_VERSION"), "dev"),
	})
	if err != nil {
		lg.Logger.Error("build handler", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		lg.Info("shutting down bos-api")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			lg.Logger.Error("server shutdown", "error", err)
		}
	}()

	var serveErr error
	if cfg.TLS.Enabled {
		lg.Info("bos-api listening (tls)", "port", cfg.APIPort)
		serveErr = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		lg.Info("bos-api listening", "port", cfg.APIPort)
		serveErr = srv.ListenAndServe()
	}
	if serveErr != nil && serveErr != http.ErrServerClosed {
		lg.Logger.Error("server error", "error", serveErr)
		os.Exit(1)
	}

	fmt.Println("bos-api stopped")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// openStore connects the configured document store backend. Kept
// identical to bos-operators' copy rather than factored into a shared
// helper package: each binary owns its own startup wiring.
func openStore(cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case "mongodb":
		return mongostore.NewStore(cfg.DatabaseURL, cfg.DatabaseDBName, log)
	case "sqlite":
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := sqlitedriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			return nil, err
		}
		return sqlstore.New(db, dialect)
	default: // postgres
		db, err := pgdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(db, pgdriver.NewDialect())
	}
}
