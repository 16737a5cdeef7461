package main

import (
	"github.com/spf13/cobra"

	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load machine types, machines, rules and quotas from a fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			svc, err := newServices(a.cfg)
			if err != nil {
				return err
			}
			seeder := seed.NewSeeder(svc.store, svc.api.Admin, svc.api.Machines)
			if err := seeder.Apply(cmd.Context(), f); err != nil {
				return err
			}
			logger.Get().Info("seed applied", "file", args[0])
			return nil
		},
	}
}
