package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/uploadvault/internal/flagx"
	"github.com/dmitrijs2005/uploadvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr string          `json:"server_endpoint_addr"`
	AccessToken        string          `json:"access_token"`
	RequestContext     json.RawMessage `json:"context"`
	CommandTimeout     timex.Duration  `json:"command_timeout"`
	ConfirmAttempts    int             `json:"confirm_attempts"`
	HistoryPath        *string         `json:"history_path"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. Absent fields keep their value. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
	if len(jc.RequestContext) > 0 {
		cfg.RequestContext = string(jc.RequestContext)
	}
	if jc.CommandTimeout.Duration > 0 {
		cfg.CommandTimeout = jc.CommandTimeout.Duration
	}
	if jc.ConfirmAttempts > 0 {
		cfg.ConfirmAttempts = jc.ConfirmAttempts
	}
	// present-but-empty disables the history
	if jc.HistoryPath != nil {
		cfg.HistoryPath = *jc.HistoryPath
	}
}
