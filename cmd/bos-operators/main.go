// Package main is the bos-operators entry point: the long-running
// process that owns every reconciliation loop (discovery, session
// setup, configuration, power transitions, status, and cleanup).
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hpe-cray/bos/internal/clients/bss"
	"github.com/hpe-cray/bos/internal/clients/cfs"
	"github.com/hpe-cray/bos/internal/clients/hsm"
	"github.com/hpe-cray/bos/internal/clients/ims"
	"github.com/hpe-cray/bos/internal/clients/objectstore"
	"github.com/hpe-cray/bos/internal/clients/powercontrol"
	"github.com/hpe-cray/bos/internal/clients/tenant"
	"github.com/hpe-cray/bos/internal/config"
	"github.com/hpe-cray/bos/internal/eventbus"
	"github.com/hpe-cray/bos/internal/migrate"
	"github.com/hpe-cray/bos/internal/operator"
	"github.com/hpe-cray/bos/internal/operator/sessionsetup"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
	"github.com/hpe-cray/bos/internal/store/etcdstore"
	"github.com/hpe-cray/bos/internal/store/mongostore"
	"github.com/hpe-cray/bos/internal/store/sqlstore"
	pgdriver "github.com/hpe-cray/bos/internal/store/sqlstore/driver/postgres"
	sqlitedriver "github.com/hpe-cray/bos/internal/store/sqlstore/driver/sqlite"
	"github.com/hpe-cray/bos/internal/wakebus"
	"github.com/hpe-cray/bos/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logging.Default("bos-operators")
	lg.Info("starting bos-operators", "env", cfg.Env, "driver", cfg.DatabaseDriver)

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
			DialTimeout: 5_000_000_000,
		}, lg.Logger)
		if err != nil {
			lg.Logger.Error("open etcd token store", "error", err)
			os.Exit(1)
		}
		tokens = ts
	}

	var wake *wakebus.Bus
	var events *eventbus.Bus
	if cfg.RedisURL != "" {
		wake, err = wakebus.New(cfg.RedisURL)
		if err != nil {
			lg.Logger.Warn("wakebus unavailable, operators will rely on polling only", "error", err)
		}
		events, err = eventbus.New(cfg.RedisURL)
		if err != nil {
			lg.Logger.Warn("eventbus unavailable, status changes will not be published", "error", err)
		}
	}

	var objStore *objectstore.Client
	if cfg.ObjStore.Endpoint != "" {
		objStore, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjStore.Endpoint,
			AccessKey: cfg.ObjStore.AccessKey,
			SecretKey: cfg.ObjStore.SecretKey,
			Bucket:    cfg.ObjStore.Bucket,
			UseSSL:    cfg.ObjStore.UseSSL,
		})
		if err != nil {
			lg.Logger.Warn("object store unavailable", "error", err)
		}
	}

	env := &operator.Env{
		Store:        backend,
		Tokens:       tokens,
		Options:      options.New(backend, 0),
		Wake:         wake,
		Events:       events,
		Log:          lg,
		PowerCtl:     powercontrol.New(cfg.External.PowerControlURL),
		HSM:          hsm.New(cfg.External.HSMURL),
		BSS:          bss.New(cfg.External.BSSURL),
		IMS:          ims.New(cfg.External.IMSURL),
		CFS:          cfs.New(cfg.External.CFSURL),
		Tenant:       tenant.New(cfg.External.TenantURL),
		ObjStore:     objStore,
		LivenessPath: cfg.LivenessPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCatalog(ctx, env)

	<-ctx.Done()
	lg.Logger.Info("shutdown signal received, draining operators")
}

// runCatalog spawns one goroutine per operator.Operator catalog entry
// plus the bespoke session- and discovery-level runners.
func runCatalog(ctx context.Context, env *operator.Env) {
	for _, op := range []operator.Operator{
		operator.NewConfiguration(),
		operator.NewPowerOn(),
		operator.NewPowerOffGraceful(),
		operator.NewPowerOffForceful(),
		operator.NewStatus(),
		operator.NewActualStateCleanup(),
	} {
		go operator.NewRunner(op, env).Run(ctx)
	}

	go operator.NewDiscoveryRunner(env).Run(ctx)
	go sessionsetup.New(env).Run(ctx)
	go operator.NewSessionCompletionRunner(env).Run(ctx)
	go operator.NewSessionCleanupRunner(env).Run(ctx)
}

// openStore connects the configured document store backend.
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
