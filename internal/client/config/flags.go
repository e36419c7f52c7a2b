package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/flagx"
)

var ownFlags = []string{"-e", "-client-id", "-region", "-db", "-bridge", "-log-level", "-w", "-resume"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-e string          chat backend endpoint URL
//	-client-id string  identity provider app client id
//	-region string     identity provider region
//	-db string         SQLite database path
//	-bridge string     host:port for the browser extension bridge
//	-log-level string  debug|info|warn|error
//	-w int             content wait timeout (milliseconds)
//	-resume            keep the stored current session
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("quickpage", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIEndpoint, "e", cfg.APIEndpoint, "chat backend endpoint")
	fs.StringVar(&cfg.IdentityClientID, "client-id", cfg.IdentityClientID, "identity app client id")
	fs.StringVar(&cfg.IdentityRegion, "region", cfg.IdentityRegion, "identity region")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.BridgeAddr, "bridge", cfg.BridgeAddr, "extension bridge address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.ResumeSession, "resume", cfg.ResumeSession, "resume the stored session")
	waitMs := fs.Int("w", int(cfg.ContentWaitTimeout.Milliseconds()), "content wait timeout (ms)")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags, "-resume")); err != nil {
		return err
	}

	cfg.ContentWaitTimeout = time.Duration(*waitMs) * time.Millisecond
	return nil
}
