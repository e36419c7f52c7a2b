package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "QUICKPAGE_"

// parseEnv loads dotenvPath (when it exists) into the process environment
// without overriding variables that are already set, then copies every
// QUICKPAGE_* variable it knows into cfg. Durations are given in
// milliseconds.
func parseEnv(cfg *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	setString(&cfg.IdentityRegion, "IDENTITY_REGION")
	setString(&cfg.IdentityClientID, "IDENTITY_CLIENT_ID")
	setString(&cfg.APIEndpoint, "API_ENDPOINT")
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.BridgeAddr, "BRIDGE_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	for name, dst := range map[string]*time.Duration{
		"REFRESH_WINDOW_MS":       &cfg.RefreshWindow,
		"CONTENT_WAIT_TIMEOUT_MS": &cfg.ContentWaitTimeout,
		"STREAM_WORD_DELAY_MS":    &cfg.StreamWordDelay,
		"VERIFICATION_TIMEOUT_MS": &cfg.VerificationTimeout,
	} {
		if err := setMillis(dst, name); err != nil {
			return err
		}
	}

	if v := os.Getenv(envPrefix + "RESUME_SESSION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New(envPrefix + "RESUME_SESSION must be a boolean")
		}
		cfg.ResumeSession = b
	}
	return nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func setMillis(dst *time.Duration, name string) error {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return errors.New(envPrefix + name + " must be an integer number of milliseconds")
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}
