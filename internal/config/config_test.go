package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  apiKeys:
    secret-key-1: dashboard
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: docbatch
  password: s3cret
  name: docbatch
openai:
  apiKey: sk-test
  model: gpt-4o
engine:
  maxParallel: 3
  itemTimeoutSeconds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "dashboard", cfg.Server.APIKeys["secret-key-1"])
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Engine.MaxParallel)
	assert.Equal(t, 60*time.Second, cfg.ItemTimeout())
	assert.Contains(t, cfg.PostgresDSN(), "host=db.internal")
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=disable")
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  host: localhost
  port: 3306
  user: root
  password: root
  name: docbatch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Engine.MaxParallel)
	assert.Equal(t, 120*time.Second, cfg.ItemTimeout())
	assert.Contains(t, cfg.MySQLDSN(), "root:root@tcp(localhost:3306)/docbatch")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
