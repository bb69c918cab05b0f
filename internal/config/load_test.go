package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets environment variables for the duration of the test.
// An empty value unsets the variable so that defaults apply.
func setupEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	for name, value := range envVars {
		t.Setenv(name, value)
		if value == "" {
			require.NoError(t, os.Unsetenv(name), "Failed to unset environment variable %s", name)
		}
	}
}

// TestLoadDefaults verifies the defaults used when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	setupEnv(t, map[string]string{
		ConfigPathEnv:           "",
		"RUNQ_SERVER_PORT":      "",
		"RUNQ_SERVER_LOG_LEVEL": "",
		"RUNQ_QUEUE_BACKEND":    "",
		"RUNQ_AUTH_JWT_SECRET":  "",
	})

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port, "Default server port should be 8080")
	assert.Equal(t, "info", cfg.Server.LogLevel, "Default log level should be 'info'")
	assert.Equal(t, 2, cfg.Executor.WorkerCount)
	assert.Equal(t, 100, cfg.Executor.QueueSize)
	assert.Zero(t, cfg.Executor.ReAddPerSecond)
	assert.Equal(t, "transfers", cfg.Queue.Name)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, 0, cfg.Queue.MaxSize)
	assert.False(t, cfg.Auth.AuthEnabled())
	assert.Equal(t, 60, cfg.Auth.TokenLifetimeMinutes)
}

// TestLoadFromEnv verifies that the Load function correctly reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	setupEnv(t, map[string]string{
		ConfigPathEnv:                    "",
		"RUNQ_SERVER_PORT":               "9090",
		"RUNQ_SERVER_LOG_LEVEL":          "debug",
		"RUNQ_EXECUTOR_WORKER_COUNT":     "4",
		"RUNQ_EXECUTOR_READD_PER_SECOND": "2.5",
		"RUNQ_EXECUTOR_FAIL_FAST":        "true",
		"RUNQ_QUEUE_MAX_SIZE":            "50",
		"RUNQ_QUEUE_BACKEND":             "sqlite",
		"RUNQ_QUEUE_SQLITE_PATH":         "/var/lib/runq/queue.db",
		"RUNQ_AUTH_JWT_SECRET":           "thisisasecretkeythatis32charslong!!",
	})

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with valid environment variables")
	require.NotNil(t, cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Executor.WorkerCount)
	assert.Equal(t, 2.5, cfg.Executor.ReAddPerSecond)
	assert.True(t, cfg.Executor.FailFast)
	assert.Equal(t, 50, cfg.Queue.MaxSize)
	assert.Equal(t, "sqlite", cfg.Queue.Backend)
	assert.Equal(t, "/var/lib/runq/queue.db", cfg.Queue.SQLitePath)
	assert.True(t, cfg.Auth.AuthEnabled())
}

// TestLoadFromFile verifies that a config file is read and that the
// environment still wins over it.
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runq.yaml")
	content := []byte(`
server:
  port: 7070
  log_level: warn
queue:
  name: uploads
  backend: file
  file_path: /tmp/uploads.jsonl
  max_size: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	setupEnv(t, map[string]string{
		ConfigPathEnv:           path,
		"RUNQ_SERVER_PORT":      "",
		"RUNQ_SERVER_LOG_LEVEL": "error",
		"RUNQ_QUEUE_BACKEND":    "",
		"RUNQ_AUTH_JWT_SECRET":  "",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Server.LogLevel, "environment overrides the file")
	assert.Equal(t, "uploads", cfg.Queue.Name)
	assert.Equal(t, "file", cfg.Queue.Backend)
	assert.Equal(t, "/tmp/uploads.jsonl", cfg.Queue.FilePath)
	assert.Equal(t, 10, cfg.Queue.MaxSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	setupEnv(t, map[string]string{
		ConfigPathEnv: filepath.Join(t.TempDir(), "absent.yaml"),
	})

	cfg, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
	assert.Nil(t, cfg)
}

// TestLoadValidationErrors verifies that the Load function correctly validates the configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Invalid port number",
			envVars: map[string]string{"RUNQ_SERVER_PORT": "999999"},
		},
		{
			name:    "Invalid log level",
			envVars: map[string]string{"RUNQ_SERVER_LOG_LEVEL": "invalid-level"},
		},
		{
			name:    "Unknown backend",
			envVars: map[string]string{"RUNQ_QUEUE_BACKEND": "redis"},
		},
		{
			name:    "File backend without path",
			envVars: map[string]string{"RUNQ_QUEUE_BACKEND": "file"},
		},
		{
			name:    "Postgres backend without url",
			envVars: map[string]string{"RUNQ_QUEUE_BACKEND": "postgres"},
		},
		{
			name:    "Negative max size",
			envVars: map[string]string{"RUNQ_QUEUE_MAX_SIZE": "-1"},
		},
		{
			name:    "Short JWT secret",
			envVars: map[string]string{"RUNQ_AUTH_JWT_SECRET": "tooshort"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			base := map[string]string{
				ConfigPathEnv:             "",
				"RUNQ_SERVER_PORT":        "",
				"RUNQ_SERVER_LOG_LEVEL":   "",
				"RUNQ_QUEUE_BACKEND":      "",
				"RUNQ_QUEUE_MAX_SIZE":     "",
				"RUNQ_QUEUE_FILE_PATH":    "",
				"RUNQ_QUEUE_DATABASE_URL": "",
				"RUNQ_AUTH_JWT_SECRET":    "",
			}
			for k, v := range tc.envVars {
				base[k] = v
			}
			setupEnv(t, base)

			cfg, err := Load()

			require.Error(t, err, "Load() should return an error with invalid configuration")
			assert.Contains(t, err.Error(), "validation failed")
			assert.Nil(t, cfg, "Config should be nil when an error occurs")
		})
	}
}
