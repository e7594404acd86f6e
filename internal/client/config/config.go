// Package config loads runtime configuration for the uploadvault client.
//
// Sources and precedence: defaults, then UPLOADVAULT_SERVER,
// UPLOADVAULT_TOKEN and UPLOADVAULT_HISTORY from the environment, then an optional JSON file (-c or
// -config), then flags.
//
//	-a string        address:port of the gRPC endpoint
//	-t string        access token
//	-ctx string      JSON request context forwarded to the permission check
//	-timeout int     per-command timeout (seconds)
//	-attempts int    confirmation attempts while the object becomes visible
//	-history string  path of the local upload history; empty disables it
package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	RequestContext     string
	CommandTimeout     time.Duration
	ConfirmAttempts    int
	HistoryPath        string
}

// DefaultHistoryPath is <user config dir>/uploadvault/history.db, or empty
// when the platform has no config dir.
func DefaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "uploadvault", "history.db")
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.CommandTimeout = 5 * time.Minute
	c.ConfirmAttempts = 5
	c.HistoryPath = DefaultHistoryPath()
}

func parseEnv(c *Config) {
	if v := os.Getenv("UPLOADVAULT_SERVER"); v != "" {
		c.ServerEndpointAddr = v
	}
	if v := os.Getenv("UPLOADVAULT_TOKEN"); v != "" {
		c.AccessToken = v
	}
	if v, ok := os.LookupEnv("UPLOADVAULT_HISTORY"); ok {
		c.HistoryPath = v
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
