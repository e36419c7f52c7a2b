package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the QuickPage coordinator.
//
// Fields:
//   - IdentityRegion, IdentityClientID: the identity provider's region and
//     app client id. There is exactly one of each; every identity call
//     (login, refresh, signup, profile) reads them from here.
//   - APIEndpoint: URL of the chat backend's single action-tagged endpoint.
//   - DBPath: SQLite file holding the credential and preference stores.
//   - RefreshWindow: how long before expiry a token is refreshed pre-emptively.
//   - ContentWaitTimeout: how long a query waits for page extraction.
//   - StreamWordDelay: pacing between streamed words of an answer.
//   - VerificationTimeout: lifetime of a pending email verification.
//   - BridgeAddr: host:port the browser extension bridge listens on.
//   - LogLevel: debug, info, warn or error.
//   - ResumeSession: keep the stored current session instead of starting a new chat.
type Config struct {
	IdentityRegion      string
	IdentityClientID    string
	APIEndpoint         string
	DBPath              string
	RefreshWindow       time.Duration
	ContentWaitTimeout  time.Duration
	StreamWordDelay     time.Duration
	VerificationTimeout time.Duration
	BridgeAddr          string
	LogLevel            string
	ResumeSession       bool
}

// LoadDefaults populates c with production defaults.
func (c *Config) LoadDefaults() {
	c.IdentityRegion = "us-east-1"
	c.IdentityClientID = "your-app-client-id"
	c.APIEndpoint = "https://YOUR_API_ID.execute-api.us-east-1.amazonaws.com/prod"
	c.DBPath = "quickpage.db"
	c.RefreshWindow = 60 * time.Second
	c.ContentWaitTimeout = 5 * time.Second
	c.StreamWordDelay = 30 * time.Millisecond
	c.VerificationTimeout = 15 * time.Minute
	c.BridgeAddr = "127.0.0.1:8765"
	c.LogLevel = "info"
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.IdentityRegion == "" {
		return errors.New("identity region cannot be empty")
	}
	if c.IdentityClientID == "" {
		return errors.New("identity client id cannot be empty")
	}
	if c.APIEndpoint == "" {
		return errors.New("api endpoint cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("db path cannot be empty")
	}
	if c.RefreshWindow < 0 {
		return errors.New("refresh window must not be negative")
	}
	if c.ContentWaitTimeout <= 0 {
		return errors.New("content wait timeout must be > 0")
	}
	if c.StreamWordDelay < 0 {
		return errors.New("stream word delay must not be negative")
	}
	if c.VerificationTimeout <= 0 {
		return errors.New("verification timeout must be > 0")
	}
	return nil
}

// LoadConfig constructs a Config from defaults, then overlays the
// environment (including an optional .env file), a JSON file and finally
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseJson(cfg, os.Args[1:]); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
