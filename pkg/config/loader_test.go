package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
logger:
  level: debug
  format: json

session:
  backend: sqlite
  path: /tmp/fleet-test.db

orchestrator:
  max_iterations: 10
  request_timeout: 90s
  retry_budget: 3

agents:
  - name: Classifier
    description: tags documents
    url: http://classifier.internal:8080
    skills: [tagging, routing]
  - name: Legal
    url: http://legal.internal:8080
    auth:
      type: bearer
      token: ${LEGAL_TOKEN:-fallback-token}
`

func TestParse(t *testing.T) {
	t.Setenv("LEGAL_TOKEN", "")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, 10, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.Orchestrator.RequestTimeout)
	assert.Equal(t, 3, cfg.Orchestrator.RetryBudget)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, []string{"tagging", "routing"}, cfg.Agents[0].Skills)
	require.NotNil(t, cfg.Agents[1].Auth)
	assert.Equal(t, "fallback-token", cfg.Agents[1].Auth.Token)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("LEGAL_TOKEN", "secret-from-env")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Agents[1].Auth.Token)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("agents:\n  - name: Solo\n    url: http://solo:8080\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "text", cfg.Logger.Format)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 20, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 180*time.Second, cfg.Orchestrator.RequestTimeout)
	assert.Equal(t, 2, cfg.Orchestrator.RetryBudget)
	assert.Equal(t, 60*time.Second, cfg.Orchestrator.CooldownCap)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing url", "agents:\n  - name: NoURL\n"},
		{"missing name", "agents:\n  - url: http://x:1\n"},
		{"duplicate names", "agents:\n  - name: A\n    url: http://x:1\n  - name: A\n    url: http://y:1\n"},
		{"bad log level", "logger:\n  level: loud\n"},
		{"bad backend", "session:\n  backend: etcd\n"},
		{"bad auth type", "agents:\n  - name: A\n    url: http://x:1\n    auth:\n      type: kerberos\n      token: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Agents, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
