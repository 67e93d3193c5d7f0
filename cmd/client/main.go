package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/palemoky/roomchat/internal/api"
	"github.com/palemoky/roomchat/internal/config"
	"github.com/palemoky/roomchat/internal/history"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/sound"
	"github.com/palemoky/roomchat/internal/transport"
	"github.com/palemoky/roomchat/internal/types"
	"github.com/palemoky/roomchat/internal/ui"
	"github.com/palemoky/roomchat/internal/ui/model"
)

var rootCmd = &cobra.Command{
	Use:          "roomchat",
	Short:        "Terminal client for roomchat rooms",
	SilenceUsage: true,
	RunE:         runClient,
}

var (
	flagConfig    string
	flagServerURL string
	flagRoom      string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfig, "config", "configs/config.yaml", "config file; built-in defaults are used when missing")
	flags.StringVar(&flagServerURL, "server-url", "", "chat server base URL (overrides client.server_url)")
	flags.StringVar(&flagRoom, "room", "", "room id to enter right after login")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.L().Warn().Err(err).Str("path", flagConfig).Msg("config unreadable, using defaults")
		}
		cfg = config.Default()
	}
	if flagServerURL != "" {
		cfg.Client.ServerURL = flagServerURL
	}
	return cfg
}

func runClient(cmd *cobra.Command, args []string) error {
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "log file unavailable: %v\n", err)
	}
	defer logger.Close()

	cfg := loadConfig()

	chat, err := api.New(cfg.Client.ServerURL)
	if err != nil {
		return err
	}
	policy := transport.ParseMalformedPolicy(cfg.Client.MalformedPolicy)
	dial := func() types.RoomConn {
		conn := transport.NewClient(chat.WebSocketURL())
		conn.Jar = chat.Jar()
		conn.Policy = policy
		return conn
	}

	deps := model.Deps{API: chat, Dial: dial}
	if cfg.Client.HistoryPath != "" {
		store, err := history.Open(cfg.Client.HistoryPath)
		if err != nil {
			logger.L().Warn().Err(err).Msg("history disabled")
		} else {
			defer func() { _ = store.Close() }()
			deps.History = store
		}
	}
	if cfg.Client.Sound {
		player := sound.NewPlayer(cfg.Client.SoundDir)
		defer player.Close()
		deps.Sound = player
	}

	m := ui.NewChatModel(deps, model.Options{
		TypingTimeout:   cfg.Client.TypingTimeoutDuration(),
		IdentityTimeout: cfg.Client.IdentityTimeoutDuration(),
		ShowJoinLines:   cfg.Client.JoinLines(),
		HistoryLimit:    cfg.Client.HistoryLimit,
		InitialRoom:     flagRoom,
	})

	logger.L().Info().Str("server", cfg.Client.ServerURL).Msg("client starting")
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run client: %w", err)
	}
	return nil
}
