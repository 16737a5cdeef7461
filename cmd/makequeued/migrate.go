package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"makequeue-backend/config"
	"makequeue-backend/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(*cobra.Command, []string) error {
				cfg := withoutAutoMigrate(a.cfg)
				gormDB, err := db.Init(&cfg.Database)
				if err != nil {
					return err
				}
				return db.Migrate(gormDB, cfg.Database.Driver)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (postgres only)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return errors.New("steps must be a positive integer")
					}
					steps = n
				}
				cfg := withoutAutoMigrate(a.cfg)
				if cfg.Database.Driver != "postgres" {
					return errors.New("migrate down needs the postgres driver")
				}
				gormDB, err := db.Init(&cfg.Database)
				if err != nil {
					return err
				}
				return db.MigrateDown(gormDB, steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations (postgres only)",
			RunE: func(*cobra.Command, []string) error {
				cfg := withoutAutoMigrate(a.cfg)
				if cfg.Database.Driver != "postgres" {
					return errors.New("migrate status needs the postgres driver")
				}
				gormDB, err := db.Init(&cfg.Database)
				if err != nil {
					return err
				}
				return db.MigrationStatus(gormDB)
			},
		},
	)
	return cmd
}

func withoutAutoMigrate(cfg *config.Config) *config.Config {
	cp := *cfg
	cp.Database.AutoMigrate = false
	return &cp
}
