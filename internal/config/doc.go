// Package config handles configuration loading for envision-bot.
//
// # Overview
//
// Configuration is loaded from a TOML file with environment variable
// expansion. A .env file next to the config file is loaded first; variables
// already present in the environment win.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from ENVISION_BOT_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/envision-bot/bot.toml
//  4. ~/.config/envision-bot/bot.toml
//
// # Environment Variable Expansion
//
//	[matrix]
//	password = "${ENVISION_MATRIX_PASSWORD}"
//
// # Configuration Sections
//
// Matrix account (either access_token + user_id, or username + password):
//
//	[matrix]
//	homeserver = "https://matrix.example.org"
//	user_id = "@envision:example.org"
//	access_token = "${ENVISION_MATRIX_TOKEN}"
//	recovery_key = ""        # enables cross-signing for E2EE rooms
//	auto_join = true         # accept room invites
//	allowed_users = []       # empty = everyone
//
// Conversation:
//
//	[bot]
//	typing_delay = "1s"
//	message_delay = "1.5s"
//	session_idle_timeout = "24h"   # "0" keeps sessions forever
//	dedupe_ttl = "10m"
//	dedupe_size = 10000
//	script_path = ""               # YAML override of the reply texts
//
// Ticket ledger (empty path disables it):
//
//	[database]
//	path = "/var/lib/envision-bot/ledger.db"
//
// Logging:
//
//	[logging]
//	level = "info"   # debug, info, warn, error
//	format = "text"  # text, json
package config
