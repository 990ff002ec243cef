package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/config"
	"github.com/bryanwahyu/cerviscan/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "cerviscan",
	Short:         "Cervical screening image classification and clinician review service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// path config.yaml
	def := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", def, "path to the yaml config file")
}

// loadRuntime reads config and builds the logger every subcommand uses
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "cerviscan")
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
