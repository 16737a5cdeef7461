package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"makequeue-backend/config"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
)

// Models lists every table owned by the reservation core, parents first.
func Models() []any {
	return []any{
		&model.User{},
		&model.CoursePermission{},
		&model.MachineType{},
		&model.Machine{},
		&model.Printer3DCourse{},
		&model.ReservationRule{},
		&model.Quota{},
		&model.Reservation{},
	}
}

// Init opens the configured database and, when asked to, brings the schema up to date.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	log := logger.WithComponent("db")

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := gormlogger.Warn
	if cfg.LogQueries {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if cfg.AutoMigrate {
		log.Info("running database migrations", "driver", cfg.Driver)
		if err := Migrate(db, cfg.Driver); err != nil {
			return nil, err
		}
	}

	log.Info("database initialization complete", "driver", cfg.Driver)
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the versioned SQL migrations on postgres and falls back to
// AutoMigrate for sqlite, which cannot express the overlap exclusion constraint.
func Migrate(db *gorm.DB, driver string) error {
	if driver == "postgres" {
		return MigrateUp(db)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}
