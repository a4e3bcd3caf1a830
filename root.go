package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/codepacceproduct/clausify/internal/config"
	"github.com/codepacceproduct/clausify/internal/log"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "harvey",
	Short:         "Harvey, the Clausify legal assistant service",
	Long:          `Harvey turns natural-language commands into tool calls against the Clausify platform.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $HARVEY_CONFIG or ./config.json)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// loadConfig reads the config and installs the logger it describes.
func loadConfig(ctx context.Context) (context.Context, *config.Config, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return ctx, nil, func() {}, err
	}
	ctx, flush := log.NewContextWithLogger(ctx, log.Options{
		Debug: debug || cfg.BasicConfig.Debug,
		File:  cfg.BasicConfig.LogFile,
	})
	return ctx, cfg, flush, nil
}
