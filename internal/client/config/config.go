package config

import "time"

// Config holds runtime settings for the MailVault CLI.
//
// Fields:
//   - ServerURL: base URL of the vault's HTTP API.
//   - RequestTimeout: upper bound of one API call, including the remote
//     mailbox round trip the server makes.
//   - KeyringBackend / KeyringDir / KeyringFilePassword: where the session
//     cookie is kept between runs.
type Config struct {
	ServerURL           string
	RequestTimeout      time.Duration
	KeyringBackend      string
	KeyringDir          string
	KeyringFilePassword string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 60 * time.Second
	c.KeyringBackend = "auto"
	c.KeyringDir = "~/.config/mailvault/keyring"
	c.KeyringFilePassword = "mailvault-file-key"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
