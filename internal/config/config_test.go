package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  public_ip: 203.0.113.7\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.ListenAddr)
	assert.Equal(t, 8181, cfg.Server.HTTPPort)
	assert.Equal(t, 27600, cfg.Server.EventPort)
	assert.Equal(t, uint16(27015), cfg.Server.GamePort)
	assert.Equal(t, time.Second, cfg.Server.Heartbeat)
	assert.Equal(t, BackendSQLite, cfg.Database.Backend)
	assert.Equal(t, "/var/lib/sessiond/sessions.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)
}

func TestValidateUnsupportedBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  public_ip: 203.0.113.7
database:
  backend: oracle
`))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "unsupported database backend")
}

func TestValidatePostgresRequiresConnectionFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  public_ip: 203.0.113.7
database:
  backend: postgres
  host: db.example.com
`))
	require.NoError(t, err)
	// user and name are still missing
	assert.Error(t, cfg.Validate())

	cfg.Database.User = "sessions"
	cfg.Database.Name = "sessions"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresPublicIP(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  backend: sqlite\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "public_ip")
}
