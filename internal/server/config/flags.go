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
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC health bind address (e.g. ":50051")
//	-s string   store backend: redis, postgres, memory
//	-r string   redis URL
//	-d string   PostgreSQL DSN
//	-k string   credential cipher secret
//	-j string   session signing secret
//	-b string   remote backend: ews, imap
//	-e string   EWS endpoint URL
//	-t int      remote operation timeout, seconds
//	-z string   time zone for received dates
//
// Everything else is only configurable through the JSON file.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-s", "-r", "-d", "-k", "-j", "-b", "-e", "-t", "-z"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.StoreBackend, "s", config.StoreBackend, "record store backend (redis, postgres, memory)")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.CipherSecret, "k", config.CipherSecret, "credential cipher secret")
	fs.StringVar(&config.SessionSecret, "j", config.SessionSecret, "session signing secret")
	fs.StringVar(&config.RemoteBackend, "b", config.RemoteBackend, "remote mailbox backend (ews, imap)")
	fs.StringVar(&config.EWSURL, "e", config.EWSURL, "EWS endpoint URL")
	remoteTimeout := fs.Int("t", int(config.RemoteTimeout.Seconds()), "remote operation timeout (in seconds)")
	fs.StringVar(&config.TimeZone, "z", config.TimeZone, "time zone for received dates")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RemoteTimeout = time.Duration(*remoteTimeout) * time.Second
}
