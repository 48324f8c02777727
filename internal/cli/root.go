package cli

import (
	"fmt"
	"os"

	"simpleweb3/internal/config"
	"simpleweb3/internal/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgPath string
	isDebug bool
}

// NewRootCmd builds the simpleweb3 command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "simpleweb3",
		Short:         "Retro web3 toolkit",
		Long:          `simpleweb3 serves the Solana validator CSV export and the EVM transaction toolkit, and drives both from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "config file (default is $CONFIG_PATH or cfg/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.isDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newExportCmd(opts),
		newFeesCmd(opts),
		newConvertCmd(),
		newValidateCmd(),
		newGasLabCmd(opts),
	)
	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.cfgPath != "" {
		if err := os.Setenv("CONFIG_PATH", o.cfgPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.isDebug {
		cfg.LogLevel = string(logger.DebugLogLevel)
	}
	return cfg, nil
}

func (o *rootOptions) newLogger(cfg *config.Config) logger.Logger {
	return logger.NewLogger(&logger.LoggerConfig{
		Level:       logger.LogLevel(cfg.LogLevel),
		Development: !cfg.IsProduction(),
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
}
