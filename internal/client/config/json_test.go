package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"server_endpoint_addr": "vault.internal:50051",
		"access_token":         "json-token",
		"context":              map[string]any{"org": "acme"},
		"command_timeout":      "45s",
		"history_path":         "",
	})

	t.Run("overlay", func(t *testing.T) {
		os.Args = []string{"cmd", "-c", path}
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "vault.internal:50051", cfg.ServerEndpointAddr)
		assert.Equal(t, "json-token", cfg.AccessToken)
		assert.JSONEq(t, `{"org":"acme"}`, cfg.RequestContext)
		assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
		assert.Equal(t, 5, cfg.ConfirmAttempts, "absent fields keep defaults")
		assert.Empty(t, cfg.HistoryPath, "explicit empty path disables history")
	})

	t.Run("no file flag", func(t *testing.T) {
		os.Args = []string{"cmd"}
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)
		assert.Equal(t, "127.0.0.1:50051", cfg.ServerEndpointAddr)
		assert.Equal(t, DefaultHistoryPath(), cfg.HistoryPath)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"cmd", "-config", filepath.Join(t.TempDir(), "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("malformed file panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		os.Args = []string{"cmd", "-c", bad}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
