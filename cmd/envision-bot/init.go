// ABOUTME: Interactive setup for envision-bot
// ABOUTME: Prompts for the Matrix account and writes a TOML config file

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// initAnswers are the values gathered by the init prompts.
type initAnswers struct {
	Homeserver  string
	Username    string
	Password    string
	RecoveryKey string
	LedgerPath  string
	LogLevel    string
}

func runInit(configPath string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println("    Interactive Setup")
	fmt.Println("    -----------------")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	if _, err := os.Stat(configPath); err == nil {
		yellow.Printf("    Config already exists at %s\n", configPath)
		overwrite := prompt(reader, "    Overwrite? [y/N]", "")
		if strings.ToLower(overwrite) != "y" {
			fmt.Println("    Aborted.")
			return nil
		}
		fmt.Println()
	}

	answers := initAnswers{
		Homeserver:  prompt(reader, "    Matrix homeserver URL", "https://matrix.org"),
		Username:    prompt(reader, "    Matrix username", ""),
		Password:    prompt(reader, "    Matrix password", ""),
		RecoveryKey: prompt(reader, "    Matrix recovery key (optional, for E2EE)", ""),
		LedgerPath:  prompt(reader, "    Ticket ledger path (empty disables)", filepath.Join(getDataPath(), "ledger.db")),
		LogLevel:    prompt(reader, "    Log level (debug/info/warn/error)", "info"),
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds a password.
	if err := os.WriteFile(configPath, []byte(renderConfig(answers)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Next steps:")
	fmt.Println("    1. Invite the bot account to a direct chat")
	fmt.Println("    2. Run: envision-bot")
	fmt.Println()

	return nil
}

// renderConfig produces a TOML config file from the init answers.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# envision-bot configuration\n")
	cfg.WriteString("# Generated by envision-bot init\n\n")

	cfg.WriteString("[matrix]\n")
	fmt.Fprintf(&cfg, "homeserver = %s\n", strconv.Quote(a.Homeserver))
	fmt.Fprintf(&cfg, "username = %s\n", strconv.Quote(a.Username))
	fmt.Fprintf(&cfg, "password = %s\n", strconv.Quote(a.Password))
	if a.RecoveryKey != "" {
		fmt.Fprintf(&cfg, "recovery_key = %s\n", strconv.Quote(a.RecoveryKey))
	}
	cfg.WriteString("# Accept room invites automatically\n")
	cfg.WriteString("auto_join = true\n")
	cfg.WriteString("# Only answer these users (empty = everyone)\n")
	cfg.WriteString("allowed_users = []\n\n")

	cfg.WriteString("[bot]\n")
	cfg.WriteString("typing_delay = \"1s\"\n")
	cfg.WriteString("message_delay = \"1.5s\"\n")
	cfg.WriteString("# \"0\" keeps sessions until restart\n")
	cfg.WriteString("session_idle_timeout = \"24h\"\n\n")

	cfg.WriteString("[database]\n")
	fmt.Fprintf(&cfg, "path = %s\n\n", strconv.Quote(a.LedgerPath))

	cfg.WriteString("[logging]\n")
	fmt.Fprintf(&cfg, "level = %s\n", strconv.Quote(a.LogLevel))
	cfg.WriteString("format = \"text\"\n")

	return cfg.String()
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
