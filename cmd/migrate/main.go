package main

import (
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dhawalhost/wardgate/internal/config"
	"github.com/dhawalhost/wardgate/pkg/logger"
)

func main() {
	dir := flag.String("dir", "db/migrations", "migration directory")
	down := flag.Bool("down", false, "roll back one migration instead of applying")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	m, err := migrate.New(fmt.Sprintf("file://%s", *dir), cfg.DSN())
	if err != nil {
		log.Fatal("create migrator", zap.Error(err))
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		log.Fatal("migration failed", zap.Error(err))
	}

	version, dirty, _ := m.Version()
	log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
