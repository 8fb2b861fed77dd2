package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oneshare/signal-server-go/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "oneshare-signal",
	Short: "Signaling and room broker for OneShare peer-to-peer transfers",
	Long: `oneshare-signal keeps short-lived share rooms in memory, relays WebRTC
negotiation between a sender and its receivers, and hands out STUN/TURN
settings. File data never passes through it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		setupLogger(cfg)
		return cfg.Validate(cfg.IsProduction())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cfg)
	},
}

func main() {
	_ = godotenv.Load(".env")

	rootCmd.AddCommand(issueTokenCmd, inspectRoomCmd)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
