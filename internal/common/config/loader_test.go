package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "DB_USER", "DB_PASSWORD", "SERVER_PORT", "STORAGE_BACKEND", "LOAN_DB_HOST"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "app:\n  name: loan-api\n")

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, "loan-applications", cfg.Search.Index)
	assert.Equal(t, "loan-api", cfg.Observability.ServiceName)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Camunda.Enabled)
	assert.False(t, cfg.Notifications.Enabled())
}

func TestLoadFromFile_PortFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	path := writeConfig(t, "server:\n  port: 3000\n")

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestLoadFromFile_AutomaticEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "Redis")
	path := writeConfig(t, "database:\n  redis:\n    address: localhost:6379\n")

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOAN_DB_HOST", "db.internal")
	path := writeConfig(t, `
storage:
  backend: postgres
database:
  postgres:
    host: ${LOAN_DB_HOST}
    database: loans
    user: svc
`)

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal port=5432 user=svc")
}

func TestLoadFromFile_Workers(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
workers:
  submit-loan-application:
    enabled: true
    timeout: 5000
  update-loan-application-status:
    enabled: false
`)

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	submit := GetWorkerConfig(cfg, "submit-loan-application")
	assert.Equal(t, 5000, submit.Timeout)
	assert.Equal(t, 5, submit.MaxJobsActive)
	assert.Equal(t, 3, submit.MaxRetries)
	assert.True(t, IsWorkerEnabled(cfg, "submit-loan-application"))
	assert.False(t, IsWorkerEnabled(cfg, "update-loan-application-status"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown-task"))
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
		{"unknown backend", "storage:\n  backend: mongo\n", "storage.backend"},
		{"postgres without host", "storage:\n  backend: postgres\n", "database.postgres.host"},
		{"postgres unset placeholder", "storage:\n  backend: postgres\ndatabase:\n  postgres:\n    host: ${LOAN_DB_HOST}\n", "database.postgres.host"},
		{"redis without address", "storage:\n  backend: redis\n", "database.redis.address"},
		{"camunda without broker", "camunda:\n  enabled: true\n", "camunda.broker_address"},
		{"search without elasticsearch", "search:\n  enabled: true\n", "elasticsearch"},
		{"email without sender", "notifications:\n  email:\n    enabled: true\n", "from_email"},
		{"sns without topic", "notifications:\n  sns:\n    enabled: true\n", "topic_arn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeConfig(t, tt.body)

			_, err := LoadFromFile(path)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestElasticsearchConfig_GetAddresses(t *testing.T) {
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
	assert.Equal(t, []string{"http://es:9200"}, ElasticsearchConfig{URL: "http://es:9200"}.GetAddresses())
	assert.Equal(t, []string{"a", "b"}, ElasticsearchConfig{Addresses: []string{"a", "b"}, URL: "c"}.GetAddresses())
}
