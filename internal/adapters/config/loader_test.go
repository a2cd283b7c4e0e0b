package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/config"
	"go.trai.ch/splitup/internal/core/domain"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splitup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Success(t *testing.T) {
	t.Setenv("SPLITUP_TEST_SECRET", "s3cret")
	path := writeFile(t, `
log_level: debug
log_format: json
policy:
  min_stake: 500
  sampling_threshold: 20
  schedulers: [sched-1, sched-2]
  dispatch_as: sched-1
store:
  backend: memory
server:
  jwt_secret: ${SPLITUP_TEST_SECRET}
`)

	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, domain.LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, uint64(500), cfg.Policy.MinStake)
	assert.Equal(t, uint8(20), cfg.Policy.SamplingThreshold)
	assert.Equal(t, []domain.Identity{"sched-1", "sched-2"}, cfg.Policy.Schedulers)
	assert.Equal(t, domain.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
	// Untouched keys keep their defaults.
	assert.Equal(t, domain.DefaultConfig().Server.Listen, cfg.Server.Listen)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfig(), cfg)

	cfg, err = config.NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMinStake, cfg.Policy.MinStake)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "unknown key",
			content: "polcy:\n  min_stake: 1\n",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name:    "malformed yaml",
			content: "policy: [",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name:    "threshold out of range",
			content: "policy:\n  sampling_threshold: 101\n",
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "postgres without dsn",
			content: "store:\n  backend: postgres\n",
			wantErr: domain.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.NewLoader().Load(writeFile(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	assert.Equal(t, config.DefaultPath, config.ResolvePath(""))

	t.Setenv(config.EnvPath, "/etc/splitup.yaml")
	assert.Equal(t, "/etc/splitup.yaml", config.ResolvePath(""))
	assert.Equal(t, "local.yaml", config.ResolvePath("local.yaml"))
}

func TestDecodeManifests(t *testing.T) {
	task, err := config.DecodeTask(strings.NewReader(`
id: 7
model_id: 1
description: embed
vram_requirement: 2048
compute_units: 4
inputs:
  - dtype: 1
    shape: [batch, 512]
    location: ipfs://in
outputs:
  - dtype: 1
    shape: [batch, 768]
    location: ipfs://out
weight_location: ipfs://weights
`))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskID(7), task.ID)
	require.NoError(t, task.Validate())
	assert.Equal(t, []domain.Dimension{"batch", "512"}, task.Inputs[0].Shape)

	model, err := config.DecodeModel(strings.NewReader(`
id: 3
name: pipeline
task_ids: [7, 8]
connections:
  - source_task_id: 7
    source_output_index: 0
    destination_task_id: 8
    dest_input_index: 0
    tensor: {dtype: 1, shape: [768], location: mem://h}
`))
	require.NoError(t, err)
	assert.Equal(t, []domain.TaskID{7, 8}, model.TaskIDs)
	require.Len(t, model.Connections, 1)
	assert.Equal(t, domain.TaskID(8), model.Connections[0].DestTaskID)

	_, err = config.DecodeTask(strings.NewReader("identifier: 1\n"))
	require.ErrorIs(t, err, domain.ErrValidation)
}
