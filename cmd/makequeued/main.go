package main

import (
	"context"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"makequeue-backend/config"
	"makequeue-backend/internal/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Get().Error("command failed", "error", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "makequeued",
		Short:         "Machine reservation backend for the makerspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the YAML config file (defaults to $CONFIG_PATH or ./config/config.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newGrantCmd(a),
	)
	return root
}

func (a *app) loadConfig() error {
	path := a.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Get().Error("failed to load configuration", "path", path, "error", err)
		return err
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return err
	}
	logger.Get().Info("configuration loaded", "path", path)
	a.cfg = cfg
	return nil
}
