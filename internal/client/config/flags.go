package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the vault server (default from Config)
//	-t int      request timeout in seconds (default from Config)
//	-k string   keyring backend (default from Config)
//
// Only the flags above are read; others are filtered out with
// flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the vault server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.KeyringBackend, "k", cfg.KeyringBackend, "keyring backend (auto, file)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
