package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the geocode cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show geocode cache entry count",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		n, err := env.cache.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("cache: %s\nentries: %d\n", cfg.Cache.Path, n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all geocode cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		n, err := env.cache.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
