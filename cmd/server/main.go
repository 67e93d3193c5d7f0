package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/palemoky/roomchat/internal/config"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/server"
)

var rootCmd = &cobra.Command{
	Use:          "roomchatd",
	Short:        "roomchat companion server",
	SilenceUsage: true,
	RunE:         runServer,
}

var (
	flagConfig string
	flagDebug  bool
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfig, "config", "configs/config.yaml", "config file; built-in defaults are used when missing")
	flags.BoolVar(&flagDebug, "debug", false, "log every request")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.L().Fatal().Err(err).Msg("roomchatd stopped")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if flagDebug {
		level = zerolog.DebugLevel
	}
	logger.InitConsole(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()), level)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		logger.L().Info().Str("path", flagConfig).Msg("no config file, using defaults")
		cfg = config.Default()
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
