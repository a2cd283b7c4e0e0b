package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/config"
	"go.trai.ch/splitup/internal/adapters/events"
	"go.trai.ch/splitup/internal/adapters/eventstream"
	"go.trai.ch/splitup/internal/adapters/logger"
	"go.trai.ch/splitup/internal/app"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/core/ports/mocks"
	_ "go.trai.ch/splitup/internal/wiring"
	"go.uber.org/mock/gomock"
)

const scheduler domain.Identity = "sched"

func testConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Store = domain.StoreConfig{Backend: domain.BackendMemory}
	cfg.Policy.Schedulers = []domain.Identity{scheduler}
	cfg.Policy.DispatchAs = scheduler
	cfg.Server.JWTSecret = "test-secret"
	return cfg
}

func quietLogger() ports.Logger {
	log := logger.New()
	log.(*logger.Logger).SetOutput(io.Discard)
	return log
}

func build(t *testing.T, cfg *domain.Config, opts ...app.BuildOption) *app.App {
	t.Helper()
	opts = append([]app.BuildOption{app.WithLogger(quietLogger())}, opts...)
	comps, err := app.Build(context.Background(), cfg, opts...)
	require.NoError(t, err)
	require.NotNil(t, comps.App)
	require.NotNil(t, comps.Logger)
	t.Cleanup(func() { _ = comps.App.Close() })
	return comps.App
}

func tensor(loc string) domain.TensorSpec {
	return domain.TensorSpec{DType: 1, Shape: []domain.Dimension{"batch", "3"}, Location: loc}
}

func seed(t *testing.T, a *app.App) {
	t.Helper()
	ctx := context.Background()
	_, err := a.Credit(ctx, scheduler, "node-a", 50_000)
	require.NoError(t, err)
	_, err = a.RegisterNode(ctx, "node-a", []domain.TaskID{1}, 40_000)
	require.NoError(t, err)

	require.NoError(t, a.RegisterTask(ctx, "alice", &domain.Task{
		ID:             1,
		ModelID:        7,
		Inputs:         []domain.TensorSpec{tensor("ipfs://in")},
		Outputs:        []domain.TensorSpec{tensor("ipfs://out")},
		WeightLocation: "ipfs://w",
	}))
	require.NoError(t, a.RegisterModel(ctx, "alice", &domain.Model{
		ID:      7,
		Name:    "single",
		TaskIDs: []domain.TaskID{1},
		Connections: []domain.TaskConnection{
			{DestTaskID: 1, Tensor: tensor("ipfs://in")},
			{SourceTaskID: 1, Tensor: tensor("ipfs://out")},
		},
	}))
}

func TestBuild_FreshGraphPerCall(t *testing.T) {
	cfg := testConfig()
	first := build(t, cfg)
	second := build(t, cfg)
	assert.NotSame(t, first, second)

	seed(t, first)
	_, err := second.Task(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuild_PublisherOverride(t *testing.T) {
	rec := events.NewRecorder()
	a := build(t, testConfig(), app.WithPublisher(rec))
	seed(t, a)

	assert.Equal(t, []domain.EventKind{
		domain.EventNodeRegistered,
		domain.EventTaskRegistered,
		domain.EventModelRegistered,
	}, rec.Kinds())
}

func TestCredit_RequiresScheduler(t *testing.T) {
	a := build(t, testConfig())
	_, err := a.Credit(context.Background(), "mallory", "mallory", 1_000)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDispatch_RequiresIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.DispatchAs = ""
	a := build(t, cfg)
	_, err := a.Dispatch(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestReload_ReplacesCommittee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splitup.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("store:\n  backend: memory\npolicy:\n  schedulers: [sched]\n")
	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)
	a := build(t, cfg)
	assert.Equal(t, []domain.Identity{scheduler}, a.Committee.Members())

	write("store:\n  backend: memory\npolicy:\n  schedulers: [sched, backup]\n")
	a.Reload()
	assert.Equal(t, []domain.Identity{scheduler, "backup"}, a.Committee.Members())

	write("policy:\n  sampling_threshold: 101\n")
	a.Reload()
	assert.Equal(t, []domain.Identity{scheduler, "backup"}, a.Committee.Members())
}

func TestReload_AppliesStakeAndSampling(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "splitup.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("store:\n  backend: memory\npolicy:\n  schedulers: [sched]\n")
	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)
	a := build(t, cfg)
	seed(t, a)

	_, err = a.Credit(ctx, scheduler, "node-b", 1_000)
	require.NoError(t, err)
	_, err = a.RegisterNode(ctx, "node-b", []domain.TaskID{1}, 500)
	require.ErrorIs(t, err, domain.ErrBelowMinimum)

	write("store:\n  backend: memory\npolicy:\n  schedulers: [sched]\n  min_stake: 100\n  sampling_threshold: 100\n")
	a.Reload()

	_, err = a.RegisterNode(ctx, "node-b", []domain.TaskID{1}, 500)
	require.NoError(t, err)

	exec, err := a.RequestExecution(ctx, "carol", 7, "ipfs://x", 5)
	require.NoError(t, err)
	_, err = a.AssignTask(ctx, scheduler, exec.ID, 1, "node-b")
	require.NoError(t, err)

	// Reduces to 51, above the default threshold.
	entropy := []byte{0x32, 0, 0, 0, 0, 0, 0, 0}
	got, err := a.CompleteTask(ctx, "node-b", exec.ID, 0, []string{"ipfs://y"}, entropy)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, domain.TaskPendingVerification, got.Tasks[1].State)
}

type client struct {
	t    *testing.T
	base string
}

func (c *client) do(token, method, path string, body any) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.base+path, r)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, out
}

func TestServe_EndToEnd(t *testing.T) {
	a := build(t, testConfig())
	seed(t, a)

	apiLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	streamLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- a.Serve(ctx, apiLis, streamLis) }()

	stream, err := eventstream.Dial(streamLis.Addr().String())
	require.NoError(t, err)
	defer stream.Close()
	subCtx, stopSub := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopSub()
	sub, err := stream.Subscribe(subCtx, eventstream.SubscribeRequest{})
	require.NoError(t, err)

	received := make(chan domain.Event, 64)
	go func() {
		for {
			e, err := sub.Recv()
			if err != nil {
				close(received)
				return
			}
			received <- e
		}
	}()

	// Ping until the stream subscription is attached to the bus.
	pub := a.Source.(ports.EventPublisher)
	require.Eventually(t, func() bool {
		pub.Publish(context.Background(), domain.Event{ID: "ping", Kind: domain.EventStakeUpdated})
		select {
		case e := <-received:
			return e.ID == "ping"
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	auth := a.Authenticator()
	carol, err := auth.Issue("carol", time.Hour)
	require.NoError(t, err)
	nodeA, err := auth.Issue("node-a", time.Hour)
	require.NoError(t, err)
	c := &client{t: t, base: "http://" + apiLis.Addr().String()}

	status, body := c.do(carol, http.MethodPost, "/v1/executions",
		map[string]any{"model_id": 7, "input": "ipfs://input", "max_fee": 5})
	require.Equal(t, http.StatusCreated, status, string(body))
	var exec domain.Execution
	require.NoError(t, json.Unmarshal(body, &exec))

	// The dispatcher answers the selection request.
	require.Eventually(t, func() bool {
		got, err := a.Execution(context.Background(), exec.ID)
		return err == nil && got.Status == domain.ExecutionInProgress
	}, 5*time.Second, 10*time.Millisecond)

	path := "/v1/executions/" + exec.ID.String() + "/tasks/0/complete"
	status, body = c.do(carol, http.MethodPost, path, map[string]any{"outputs": []string{"ipfs://y"}, "entropy": "3200000000000000"})
	require.Equal(t, http.StatusForbidden, status, string(body))

	status, body = c.do(nodeA, http.MethodPost, path, map[string]any{"outputs": []string{"ipfs://y"}, "entropy": "3200000000000000"})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &exec))
	assert.Equal(t, domain.ExecutionCompleted, exec.Status)
	assert.Len(t, exec.Tasks, 1)

	var kinds []domain.EventKind
	for e := range received {
		if e.ExecutionID != exec.ID {
			continue
		}
		kinds = append(kinds, e.Kind)
		if e.Kind == domain.EventExecutionCompleted {
			break
		}
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventExecutionRequested,
		domain.EventNodeSelectionRequested,
		domain.EventTaskAssigned,
		domain.EventTaskBeginRequested,
		domain.EventTaskCompleted,
		domain.EventExecutionCompleted,
	}, kinds)

	cancel()
	err = <-served
	if err != nil && !errors.Is(err, context.Canceled) {
		require.NoError(t, err)
	}
	assert.False(t, strings.Contains(apiLis.Addr().String(), ":0"))
}

func TestServe_ReloadsOnConfigChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := build(t, testConfig())

	const path = "/etc/splitup/splitup.yaml"
	a.Config.Path = path

	next := testConfig()
	next.Policy.Schedulers = []domain.Identity{scheduler, "backup"}
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(path).Return(next, nil)
	a.Loader = loader

	watcher := mocks.NewMockWatcher(ctrl)
	watcher.EXPECT().Watch(gomock.Any(), path, gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, onChange func()) error {
			onChange()
			<-ctx.Done()
			return nil
		})
	a.Watcher = watcher

	apiLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	streamLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- a.Serve(ctx, apiLis, streamLis) }()

	require.Eventually(t, func() bool {
		return a.Committee.Authorized("backup")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	err = <-served
	if err != nil && !errors.Is(err, context.Canceled) {
		require.NoError(t, err)
	}
}

func TestReload_LoaderFailureKeepsCommittee(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := build(t, testConfig())
	a.Config.Path = "splitup.yaml"

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load("splitup.yaml").Return(nil, domain.ErrConfigParseFailed)
	a.Loader = loader

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.ErrorIs(t, err, domain.ErrConfigParseFailed)
	})
	a.Logger = log

	a.Reload()
	assert.Equal(t, []domain.Identity{scheduler}, a.Committee.Members())
}
