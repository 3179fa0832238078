package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 8080
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: fairlens
  password: secret
  name: fairlens
minio:
  endpoint: minio.internal:9000
  accessKey: ak
  secretKey: sk
  bucketName: artifacts
  region: us-east-1
  useSSL: true
queue:
  maxAttempts: 5
  backoffBaseSeconds: 10
  backoffCapSeconds: 600
  pollIntervalSeconds: 3
  lockTTLSeconds: 120
openai:
  apiKey: sk-test
  model: gpt-4o-mini
auth:
  apiKeys:
    acme: key-acme
rateLimit:
  capacity: 100
  refillRate: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "artifacts", cfg.Minio.BucketName)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, "key-acme", cfg.Auth.APIKeys["acme"])
	assert.Equal(t, 100, cfg.RateLimit.Capacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDSNHelpers(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t,
		"fairlens:secret@tcp(db.internal:5432)/fairlens?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
	assert.Equal(t,
		"host=db.internal port=5432 user=fairlens password=secret dbname=fairlens sslmode=disable",
		cfg.PostgresDSN())
}

func TestQueueDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.QueueBackoffBase())
	assert.Equal(t, 10*time.Minute, cfg.QueueBackoffCap())
	assert.Equal(t, 3*time.Second, cfg.QueuePollInterval())
	assert.Equal(t, 2*time.Minute, cfg.QueueLockTTL())
}
