package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyfindings/backend/internal/bootstrap"
	"github.com/keyfindings/backend/pkg/config"
	appLogger "github.com/keyfindings/backend/pkg/logger"
)

var (
	cacheBackend string
	logLevel     string
	components   *bootstrap.Components
)

var rootCmd = &cobra.Command{
	Use:   "keyfindings",
	Short: "Generate and manage cached AI key-findings reports",
	Long: `keyfindings runs the report engine from the command line using the
same configuration as the API server (config.yaml or KEYFINDINGS_* env vars).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cacheBackend != "" {
			cfg.Cache.Backend = cacheBackend
		}
		if err := appLogger.Init(logLevel, "console", "stderr"); err != nil {
			return err
		}

		components, err = bootstrap.Build(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if components != nil {
			components.Close()
		}
		appLogger.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheBackend, "cache", "", "Override cache backend (sqlite, redis, memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
}
