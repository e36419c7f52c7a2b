package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/quickpage/internal/flagx"
	"github.com/dmitrijs2005/quickpage/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent
// fields leave the corresponding Config value untouched.
type JsonConfig struct {
	IdentityRegion      *string         `json:"identity_region"`
	IdentityClientID    *string         `json:"identity_client_id"`
	APIEndpoint         *string         `json:"api_endpoint"`
	DBPath              *string         `json:"db_path"`
	RefreshWindow       *timex.Duration `json:"refresh_window"`
	ContentWaitTimeout  *timex.Duration `json:"content_wait_timeout"`
	StreamWordDelay     *timex.Duration `json:"stream_word_delay"`
	VerificationTimeout *timex.Duration `json:"verification_timeout"`
	BridgeAddr          *string         `json:"bridge_addr"`
	LogLevel            *string         `json:"log_level"`
	ResumeSession       *bool           `json:"resume_session"`
}

// parseJson overlays cfg with the JSON file named by -c/-config in args.
// Without either flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	overlay(&cfg.IdentityRegion, jc.IdentityRegion)
	overlay(&cfg.IdentityClientID, jc.IdentityClientID)
	overlay(&cfg.APIEndpoint, jc.APIEndpoint)
	overlay(&cfg.DBPath, jc.DBPath)
	overlay(&cfg.BridgeAddr, jc.BridgeAddr)
	overlay(&cfg.LogLevel, jc.LogLevel)
	overlay(&cfg.ResumeSession, jc.ResumeSession)
	if jc.RefreshWindow != nil {
		cfg.RefreshWindow = jc.RefreshWindow.Duration
	}
	if jc.ContentWaitTimeout != nil {
		cfg.ContentWaitTimeout = jc.ContentWaitTimeout.Duration
	}
	if jc.StreamWordDelay != nil {
		cfg.StreamWordDelay = jc.StreamWordDelay.Duration
	}
	if jc.VerificationTimeout != nil {
		cfg.VerificationTimeout = jc.VerificationTimeout.Duration
	}
	return nil
}

func overlay[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
