package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/syftnotes/internal/server"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "syftnotes-server"}
	addFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, server.DefaultAddr, cfg.HTTP.Addr)
	assert.Equal(t, server.DefaultDbPath, cfg.DbPath)
	assert.Equal(t, server.DefaultRateLimit, cfg.RateLimit)
	assert.False(t, cfg.HTTP.TLS())
}

func TestLoadConfigEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SYFTNOTES_HTTP_ADDR", ":9090")
	t.Setenv("SYFTNOTES_HTTP_CERT_FILE", "test-cert.pem")
	t.Setenv("SYFTNOTES_HTTP_KEY_FILE", "test-key.pem")
	t.Setenv("SYFTNOTES_DB_PATH", "/tmp/notes.db")
	t.Setenv("SYFTNOTES_RATE_LIMIT", "5-M")
	t.Setenv("SYFTNOTES_LOG_DIR", "/tmp/logs")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "test-cert.pem", cfg.HTTP.CertFile)
	assert.Equal(t, "test-key.pem", cfg.HTTP.KeyFile)
	assert.Equal(t, "/tmp/notes.db", cfg.DbPath)
	assert.Equal(t, "5-M", cfg.RateLimit)
	assert.Equal(t, "/tmp/logs", cfg.LogDir)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
http:
  addr: localhost:38080
  cert_file: test-cert.pem
  key_file: test-key.pem
db_path: data/notes.db
rate_limit: 20-S
`)

	cfg, err := loadConfig(newTestCmd(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "localhost:38080", cfg.HTTP.Addr)
	assert.Equal(t, "test-cert.pem", cfg.HTTP.CertFile)
	assert.Equal(t, "test-key.pem", cfg.HTTP.KeyFile)
	assert.Equal(t, "data/notes.db", cfg.DbPath)
	assert.Equal(t, "20-S", cfg.RateLimit)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `
{
	"http": {
		"addr": "localhost:38080"
	},
	"db_path": "path/to/notes.db"
}
`)

	// flags beat the file
	cfg, err := loadConfig(newTestCmd(t, "--config", path, "--bind", "0.0.0.0:8443"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8443", cfg.HTTP.Addr)
	assert.Equal(t, "path/to/notes.db", cfg.DbPath)
	assert.Equal(t, server.DefaultRateLimit, cfg.RateLimit)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"--config", "/nonexistent/config.json"}},
		{"cert without key", []string{"--cert", "cert.pem"}},
		{"bad rate", []string{"--rate-limit", "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := loadConfig(newTestCmd(t, tt.args...))
			assert.Error(t, err)
		})
	}
}
