// Command keystoretool opens a Matrix E2EE crypto store and serves its
// read-only admin API.
//
// It locates (or creates) the backing SQLite/Postgres database, runs
// pending migrations, and unlocks the store with a passphrase from
// CRYPTOSTORE_PASSPHRASE — or unencrypted if that variable is unset.
//
// Usage:
//
//	# SQLite, unencrypted
//	./keystoretool
//
//	# Encrypted, custom admin port
//	CRYPTOSTORE_PASSPHRASE=hunter2 CRYPTOSTORE_ADMIN_PORT=9090 ./keystoretool
//
//	# Postgres
//	CRYPTOSTORE_DIALECT=postgres CRYPTOSTORE_DATABASE_URL="postgres://..." ./keystoretool
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"matrix-cryptostore/internal/admin"
	"matrix-cryptostore/internal/config"
	"matrix-cryptostore/internal/cryptostore"
	"matrix-cryptostore/internal/logger"
	"matrix-cryptostore/internal/metrics"
	"matrix-cryptostore/internal/sqlstore"
)

func main() {
	cfg := config.Load()
	log := logger.New("keystoretool", cfg.LogLevel)

	printBanner(cfg)

	dialect := sqlstore.Dialect(cfg.Dialect)
	driverName := "sqlite3"
	if dialect == sqlstore.Postgres {
		driverName = "postgres"
	}

	db, err := sql.Open(driverName, cfg.DatabaseURL)
	if err != nil {
		log.Errorf("startup", "open database: %v", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck

	m := metrics.New()
	store, err := cryptostore.Open(db, dialect, log, m)
	if err != nil {
		log.Errorf("startup", "open store: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if cfg.Passphrase != "" {
		if err := store.UnlockWithPassphrase(ctx, cfg.Passphrase); err != nil {
			log.Errorf("startup", "unlock with passphrase: %v", err)
			os.Exit(1)
		}
		log.Info("startup", "store unlocked with passphrase")
	} else {
		if err := store.UnlockUnencrypted(ctx); err != nil {
			log.Errorf("startup", "unlock unencrypted: %v", err)
			os.Exit(1)
		}
		log.Warn("startup", "store unlocked without a passphrase — at-rest values are plaintext")
	}

	adminServer := admin.New(cfg, store)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutdown", "shutting down")
		os.Exit(0)
	}()

	log.Infof("startup", "admin API listening on 127.0.0.1:%d", cfg.AdminPort)
	if err := adminServer.ListenAndServe(); err != nil {
		log.Errorf("startup", "admin server: %v", err)
		os.Exit(1)
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          Matrix Crypto Store  (Go)                   ║
╚══════════════════════════════════════════════════════╝
  Database   : %s (%s)
  Admin port : %d
  Log level  : %s

  Check status:
    curl http://localhost:%d/status
`, cfg.DatabaseURL, cfg.Dialect, cfg.AdminPort, cfg.LogLevel, cfg.AdminPort)
}
