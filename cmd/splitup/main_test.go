package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskManifest = `id: 1
model_id: 7
inputs:
  - {dtype: 1, shape: [batch, 3], location: "ipfs://in"}
outputs:
  - {dtype: 1, shape: [batch, 10], location: "ipfs://out"}
weight_location: "ipfs://w"
`

const modelManifest = `id: 7
name: single
task_ids: [1]
connections:
  - {destination_task_id: 1, tensor: {dtype: 1, shape: [batch, 3], location: "ipfs://in"}}
  - {source_task_id: 1, tensor: {dtype: 1, shape: [batch, 10], location: "ipfs://out"}}
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"splitup.yaml": "log_level: warn\n" +
			"store:\n  backend: file\n  path: " + filepath.Join(dir, "registry.json") + "\n" +
			"policy:\n  schedulers: [sched]\n  dispatch_as: sched\n",
		"task.yaml":  taskManifest,
		"model.yaml": modelManifest,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestRun_ScenarioOverFileStore(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := writeWorkspace(t)
	cfg := filepath.Join(dir, "splitup.yaml")

	exec := func(args ...string) string {
		t.Helper()
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), append([]string{"-c", cfg}, args...), &stdout, &stderr)
		require.Equal(t, 0, code, "args %v: %s", args, stderr.String())
		return stdout.String()
	}

	exec("node", "credit", "node-a", "50000", "--as", "sched")
	exec("node", "register", "1", "--stake", "40000", "--as", "node-a")
	exec("task", "register", filepath.Join(dir, "task.yaml"), "--as", "alice")
	exec("model", "register", filepath.Join(dir, "model.yaml"), "--as", "alice")

	out := exec("exec", "request", "7", "--input", "ipfs://x", "--max-fee", "5", "--as", "carol")
	m := regexp.MustCompile(`^execution (\d+) `).FindStringSubmatch(out)
	require.NotNil(t, m, out)
	id := m[1]
	assert.Contains(t, out, "requestor carol  requested")

	assert.Equal(t, "1 assignments\n", exec("exec", "dispatch", id))

	out = exec("exec", "complete", id, "0", "-o", "ipfs://y", "--entropy", "3200000000000000", "--as", "node-a", "--events")
	assert.Contains(t, out, "task-completed exec="+id)
	assert.Contains(t, out, "execution-completed exec="+id)

	out = exec("exec", "show", id)
	assert.Contains(t, out, "execution "+id+"  model 7  requestor carol  completed")

	assert.Contains(t, exec("node", "show", "node-a"), "balance 10000")
}

func TestRun_ReportsErrors(t *testing.T) {
	dir := writeWorkspace(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-c", filepath.Join(dir, "splitup.yaml"), "exec", "show", "99"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "not found")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splitup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  sampling_threshold: 200\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", path, "exec", "show", "1"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "sampling threshold")
}
