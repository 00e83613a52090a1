// ABOUTME: Entry point for envision-bot, the ticket support bot for Matrix
// ABOUTME: Parses flags, dispatches subcommands, and wires the bot together for serve

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/envision-bot/internal/config"
	"github.com/2389/envision-bot/internal/dedupe"
	"github.com/2389/envision-bot/internal/engine"
	"github.com/2389/envision-bot/internal/matrix"
	"github.com/2389/envision-bot/internal/script"
	"github.com/2389/envision-bot/internal/session"
	"github.com/2389/envision-bot/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                 _     _                   _           _
  ___ _ ____   _(_)___(_) ___  _ __       | |__   ___ | |_
 / _ \ '_ \ \ / / / __| |/ _ \| '_ \ _____| '_ \ / _ \| __|
|  __/ | | \ V /| \__ \ | (_) | | | |_____| |_) | (_) | |_
 \___|_| |_|\_/ |_|___/_|\___/|_| |_|     |_.__/ \___/ \__|
`

// getConfigPath returns the path to the bot config file.
// Priority: --config flag > ENVISION_BOT_CONFIG env var > XDG_CONFIG_HOME/envision-bot/bot.toml > ~/.config/envision-bot/bot.toml
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("ENVISION_BOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "bot.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "envision-bot", "bot.toml")
}

// getDataPath returns the directory for the crypto store and default ledger.
// Priority: XDG_DATA_HOME/envision-bot > ~/.local/share/envision-bot
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "envision-bot")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configFlag string

	flagSet := pflag.NewFlagSet("envision-bot", pflag.ContinueOnError)
	flagSet.StringVarP(&configFlag, "config", "c", "", "path to the TOML config file")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	configPath := getConfigPath(configFlag)
	command := "serve"
	if flagSet.NArg() > 0 {
		command = flagSet.Arg(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "serve":
		return runServe(ctx, configPath)
	case "init":
		return runInit(configPath)
	case "tickets":
		if flagSet.NArg() < 2 {
			return errors.New("usage: envision-bot tickets <number>")
		}
		return runTickets(ctx, configPath, flagSet.Arg(1))
	case "version":
		fmt.Println(version)
		return nil
	default:
		printUsage(flagSet)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Println("Usage: envision-bot [flags] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve              Run the bot (default)")
	fmt.Println("  init               Create a new config file interactively")
	fmt.Println("  tickets <number>   Show the ledger entries of a ticket")
	fmt.Println("  version            Print the version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Print(flagSet.FlagUsages())
}

func runServe(ctx context.Context, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	if cfg.Matrix.UsesPassword() {
		fmt.Printf("Username:   %s\n", cfg.Matrix.Username)
	} else {
		fmt.Printf("User:       %s\n", cfg.Matrix.UserID)
	}
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Ledger:     %s\n", cfg.Database.Path)
	}
	fmt.Println()

	sc, err := script.Load(cfg.Bot.ScriptPath)
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	sessions := session.NewTable(cfg.Bot.SessionIdleTimeout, logger)
	go sessions.Run(ctx)

	var ledger store.Ledger
	if cfg.Database.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer s.Close()
		ledger = s
	}

	seen := dedupe.New(cfg.Bot.DedupeTTL, cfg.Bot.DedupeSize)
	defer seen.Close()

	bridge, err := matrix.NewBridge(cfg.Matrix, seen, logger)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Login(ctx); err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}

	if bridge.Client().DeviceID != "" {
		cryptoMgr, err := matrix.SetupCrypto(ctx, bridge.Client(), cfg.Matrix.RecoveryKey, getDataPath(), logger)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		defer cryptoMgr.Close()
	} else {
		logger.Warn("encryption disabled: set matrix.device_id to use encrypted rooms with an access token")
	}

	eng := engine.New(engine.Config{
		Transport: bridge,
		Sessions:  sessions,
		Script:    sc,
		Ledger:    ledger,
		Pacer:     engine.NewPacer(bridge, cfg.Bot.TypingDelay, cfg.Bot.MessageDelay, logger),
		Logger:    logger,
	})

	dispatcher := engine.NewDispatcher(ctx, eng, logger)
	defer dispatcher.Close()

	logger.Info("starting bot", "version", version)
	return bridge.Run(ctx, dispatcher)
}
