// Package config loads runtime configuration for the MailVault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the vault server
//	-t int      request timeout (seconds)
//	-k string   keyring backend: auto or file
//
// # JSON schema
//
// Durations accept strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "request_timeout": "30s",
//	  "keyring_backend": "file",
//	  "keyring_dir": "~/.config/mailvault/keyring",
//	  "keyring_file_password": "change-me"
//	}
package config
