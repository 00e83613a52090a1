// Package script holds the conversation texts and the vocabularies the bot
// matches inbound messages against.
//
// The defaults are embedded from default.yaml. An operator can point
// bot.script_path at a YAML file to replace any subset of keys:
//
//	welcome: |-
//	  Hi {{.Name}}! Please send your 5-digit ticket number.
//	finance: "Billing: https://example.com/billing"
//
// Matching is exact after trimming and lowercasing, so "  OLÁ " is a greeting
// and "menu please" is not a back word.
package script
