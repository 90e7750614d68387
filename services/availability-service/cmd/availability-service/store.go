package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agendly/agendly/libs/config"
	"github.com/agendly/agendly/libs/db"
	"github.com/agendly/agendly/services/availability-service/internal/availability"
	"github.com/agendly/agendly/services/availability-service/internal/handlers"
	"github.com/agendly/agendly/services/availability-service/internal/storage"
	"github.com/agendly/agendly/services/availability-service/internal/storage/gormstore"
)

type backend struct {
	store  availability.Store
	writer handlers.AppointmentWriter
	ready  func(context.Context) error
	close  func()
}

// openStore selects the storage backend from STORE_DRIVER:
// postgres (pgx, default), gorm (gorm over postgres) or sqlite (gorm, auto-migrated).
func openStore(ctx context.Context, logger *slog.Logger) (backend, error) {
	driver := config.String("STORE_DRIVER", "postgres")
	switch driver {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return backend{}, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolConfig{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
			MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
		})
		if err != nil {
			return backend{}, fmt.Errorf("db connect: %w", err)
		}
		repo := storage.NewRepository(pool)
		return backend{store: repo, writer: repo, ready: db.ReadyCheck(pool), close: pool.Close}, nil

	case "gorm", "sqlite":
		dsn := config.String("SQLITE_PATH", "availability.db")
		if driver == "gorm" {
			var err error
			if dsn, err = config.RequiredString("DATABASE_URL"); err != nil {
				return backend{}, err
			}
		}
		gdb, err := gormstore.Open(driver, dsn)
		if err != nil {
			return backend{}, err
		}
		if driver == "sqlite" {
			if err := gormstore.AutoMigrate(gdb); err != nil {
				return backend{}, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("sqlite store ready", "path", dsn)
		}
		s := gormstore.New(gdb)
		closeFn := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return backend{store: s, writer: s, ready: gormstore.ReadyCheck(gdb), close: closeFn}, nil

	default:
		return backend{}, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}
}
