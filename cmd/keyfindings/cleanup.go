package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupMaxAge int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete cached reports not accessed within the given number of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := components.Engine.CleanupCache(cmd.Context(), cleanupMaxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d reports older than %d days\n", deleted, cleanupMaxAge)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupMaxAge, "max-age-days", 30, "Maximum idle age in days")
}
