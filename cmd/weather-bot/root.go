package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-bot/internal/config"
)

var (
	cfg      *config.AppConfig
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "weather-bot",
	Short:        "Telegram weather bot with a WeatherAPI-backed HTTP API",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		cfg = loaded

		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(cfg.Level())
		logrus.Debugf("[CONFIG] loaded:%s", cfg)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "",
		"override LOG_LEVEL | example: --log-level=debug")
}
