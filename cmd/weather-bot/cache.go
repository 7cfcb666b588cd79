package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-bot/internal/app"
	"github.com/i474232898/weather-bot/internal/config"
	"github.com/i474232898/weather-bot/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the shared cache",
	Long: `Inspect or clear the shared cache.

Only the redis and valkey backends are reachable from here. The memory
backend lives inside the running serve process; use GET /api/v1/cache/stats
and DELETE /api/v1/cache on that process instead.`,
}

var errProcessLocalCache = errors.New(
	"CACHE_BACKEND=memory lives inside the serve process; use GET /api/v1/cache/stats or DELETE /api/v1/cache")

// openSharedCache opens the configured backend, refusing backends that a
// separate process cannot see.
func openSharedCache(ctx context.Context, c *config.AppConfig) (*store.Cache, error) {
	switch c.CacheBackend {
	case "memory", "":
		return nil, errProcessLocalCache
	}
	cache, _, err := app.OpenCache(ctx, c)
	return cache, err
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := openSharedCache(cmd.Context(), cfg)
		if err != nil && !errors.Is(err, store.ErrCacheUnavailable) {
			return err
		}
		defer cache.Close()

		out, err := json.MarshalIndent(cache.Stats(cmd.Context()), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var (
	clearDomain     string
	clearIdentifier string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear one key, one domain or everything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if clearIdentifier != "" && clearDomain == "" {
			return errors.New("--identifier requires --domain")
		}
		if clearDomain != "" && !knownDomain(clearDomain) {
			return fmt.Errorf("unknown domain %q", clearDomain)
		}

		cache, err := openSharedCache(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cache.Close()

		if !cache.Clear(cmd.Context(), store.Domain(clearDomain), clearIdentifier) {
			return errors.New("cache clear failed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

func knownDomain(d string) bool {
	for _, known := range store.Domains {
		if string(known) == d {
			return true
		}
	}
	return false
}

func init() {
	cacheClearCmd.Flags().StringVarP(&clearDomain, "domain", "d", "", "weather | forecast | cities")
	cacheClearCmd.Flags().StringVarP(&clearIdentifier, "identifier", "i", "", "city or query within the domain")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
