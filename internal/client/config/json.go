package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/flagx"
	"github.com/dmitrijs2005/mailvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent
// fields leave Config untouched.
type JsonConfig struct {
	ServerURL           string          `json:"server_url"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	KeyringBackend      string          `json:"keyring_backend"`
	KeyringDir          string          `json:"keyring_dir"`
	KeyringFilePassword string          `json:"keyring_file_password"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.KeyringBackend != "" {
		cfg.KeyringBackend = jc.KeyringBackend
	}
	if jc.KeyringDir != "" {
		cfg.KeyringDir = jc.KeyringDir
	}
	if jc.KeyringFilePassword != "" {
		cfg.KeyringFilePassword = jc.KeyringFilePassword
	}
}
