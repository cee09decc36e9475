package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mailvault/internal/flagx"
	"github.com/dmitrijs2005/mailvault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Every field is
// optional; absent fields keep the value already in Config, so a file only
// needs to name what it changes.
type JsonConfig struct {
	EndpointAddrHTTP        string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC        string          `json:"endpoint_addr_grpc"`
	StoreBackend            string          `json:"store_backend"`
	RedisURL                string          `json:"redis_url"`
	RedisKeyPrefix          string          `json:"redis_key_prefix"`
	DatabaseDSN             string          `json:"database_dsn"`
	CipherSecret            string          `json:"cipher_secret"`
	SessionSecret           string          `json:"session_secret"`
	CookieName              string          `json:"cookie_name"`
	CookieSecure            *bool           `json:"cookie_secure"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration"`
	RemoteBackend           string          `json:"remote_backend"`
	EWSURL                  string          `json:"ews_url"`
	EWSAuth                 string          `json:"ews_auth"`
	OWABaseURL              string          `json:"owa_base_url"`
	IMAPAddr                string          `json:"imap_addr"`
	IMAPTLS                 *bool           `json:"imap_tls"`
	WebmailURL              string          `json:"webmail_url"`
	RemoteTimeout           *timex.Duration `json:"remote_timeout"`
	TimeZone                string          `json:"time_zone"`
	HealthCheckInterval     *timex.Duration `json:"health_check_interval"`
}

// parseJson overlays values from the file named by -c/-config (or
// $MAILVAULT_CONFIG). It panics when the file cannot be read or parsed,
// since the server must not start on a half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.applyTo(config)
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.RedisKeyPrefix, c.RedisKeyPrefix)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.CipherSecret, c.CipherSecret)
	setString(&config.SessionSecret, c.SessionSecret)
	setString(&config.CookieName, c.CookieName)
	setString(&config.RemoteBackend, c.RemoteBackend)
	setString(&config.EWSURL, c.EWSURL)
	setString(&config.EWSAuth, c.EWSAuth)
	setString(&config.OWABaseURL, c.OWABaseURL)
	setString(&config.IMAPAddr, c.IMAPAddr)
	setString(&config.WebmailURL, c.WebmailURL)
	setString(&config.TimeZone, c.TimeZone)

	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.IMAPTLS != nil {
		config.IMAPTLS = *c.IMAPTLS
	}
	if c.SessionValidityDuration != nil {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	if c.RemoteTimeout != nil {
		config.RemoteTimeout = c.RemoteTimeout.Duration
	}
	if c.HealthCheckInterval != nil {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
