// Package config loads runtime configuration for the QuickPage coordinator.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: QUICKPAGE_* variables, optionally loaded from a .env file.
//  3. Optional JSON file selected via -c or -config.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "5s" or integer
// nanoseconds:
//
//	{
//	  "identity_region": "us-east-1",
//	  "identity_client_id": "abc123",
//	  "api_endpoint": "https://example.execute-api.us-east-1.amazonaws.com/prod",
//	  "content_wait_timeout": "5s",
//	  "verification_timeout": "15m"
//	}
package config
