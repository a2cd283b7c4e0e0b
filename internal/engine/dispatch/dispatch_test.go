package dispatch_test

import (
	"context"
	"encoding/binary"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/events"
	"go.trai.ch/splitup/internal/adapters/registry"
	"go.trai.ch/splitup/internal/adapters/telemetry"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/core/ports/mocks"
	"go.trai.ch/splitup/internal/engine/dispatch"
	"go.trai.ch/splitup/internal/engine/eligibility"
	"go.trai.ch/splitup/internal/engine/orchestrator"
	"go.trai.ch/splitup/internal/engine/stake"
	"go.uber.org/mock/gomock"
)

const scheduler domain.Identity = "sched"

type fixture struct {
	orch   *orchestrator.Orchestrator
	ledger *stake.Ledger
	disp   *dispatch.Dispatcher
	log    *mocks.MockLogger
}

func tensor() domain.TensorSpec {
	return domain.TensorSpec{DType: 1, Shape: []domain.Dimension{"8"}, Location: "mem://t"}
}

func newFixture(t *testing.T, pub ports.EventPublisher, taskIDs []domain.TaskID, nodes ...domain.Node) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	model := &domain.Model{ID: 3, Name: "m", TaskIDs: taskIDs}
	model.Connections = append(model.Connections, domain.TaskConnection{DestTaskID: taskIDs[0], Tensor: tensor()})
	for i := 1; i < len(taskIDs); i++ {
		model.Connections = append(model.Connections,
			domain.TaskConnection{SourceTaskID: taskIDs[i-1], DestTaskID: taskIDs[i], Tensor: tensor()})
	}

	store := registry.NewMemoryStore()
	require.NoError(t, store.Tx(context.Background(), func(_ context.Context, tx ports.Tx) error {
		for _, id := range taskIDs {
			task := &domain.Task{ID: id, ModelID: 3, Inputs: []domain.TensorSpec{tensor()},
				Outputs: []domain.TensorSpec{tensor()}, WeightLocation: "mem://w"}
			if err := tx.CreateTask(task); err != nil {
				return err
			}
		}
		for i := range nodes {
			if err := tx.CreateNode(&nodes[i]); err != nil {
				return err
			}
		}
		return tx.CreateModel(model)
	}))

	committee, err := domain.NewCommittee([]domain.Identity{scheduler})
	require.NoError(t, err)
	tracer := telemetry.NewNoOpTracer()
	orch := orchestrator.New(store, pub, domain.PercentSampler{Threshold: 8}, committee, log, tracer)
	ledger := stake.New(store, pub, log, tracer, domain.DefaultMinStake)
	disp := dispatch.New(orch, eligibility.New(store, 2), scheduler, ledger, log, tracer)
	return &fixture{orch: orch, ledger: ledger, disp: disp, log: log}
}

func TestDispatch_AssignsHighestStakedNode(t *testing.T) {
	f := newFixture(t, events.NewRecorder(), []domain.TaskID{1, 2},
		domain.Node{Owner: "amy", Stake: 40_000, Specializations: []domain.TaskID{1, 2}},
		domain.Node{Owner: "bob", Stake: 50_000, Specializations: []domain.TaskID{1, 2}},
		domain.Node{Owner: "cat", Stake: 10, Specializations: []domain.TaskID{1, 2}},
	)
	ctx := context.Background()
	exec, err := f.orch.RequestExecution(ctx, "req", 3, "mem://in", 0)
	require.NoError(t, err)

	n, err := f.disp.Dispatch(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.orch.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionInProgress, got.Status)
	assert.Equal(t, domain.Identity("bob"), got.Tasks[0].AssignedNode)
	assert.Equal(t, domain.Identity("bob"), got.Tasks[1].AssignedNode)

	n, err = f.disp.Dispatch(ctx, exec.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatch_FollowsLedgerMinimum(t *testing.T) {
	f := newFixture(t, events.NewRecorder(), []domain.TaskID{1},
		domain.Node{Owner: "amy", Stake: 40_000, Specializations: []domain.TaskID{1}},
	)
	ctx := context.Background()
	f.ledger.SetMinStake(45_000)
	f.orch.SetMinStake(45_000)

	exec, err := f.orch.RequestExecution(ctx, "req", 3, "mem://in", 0)
	require.NoError(t, err)
	_, err = f.disp.Dispatch(ctx, exec.ID)
	require.ErrorIs(t, err, domain.ErrIneligibleNode)

	f.ledger.SetMinStake(40_000)
	f.orch.SetMinStake(40_000)
	n, err := f.disp.Dispatch(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDispatch_VerifierSkipsOriginalNode(t *testing.T) {
	f := newFixture(t, events.NewRecorder(), []domain.TaskID{1},
		domain.Node{Owner: "amy", Stake: 40_000, Specializations: []domain.TaskID{1}},
		domain.Node{Owner: "bob", Stake: 50_000, Specializations: []domain.TaskID{1}},
	)
	ctx := context.Background()
	exec, err := f.orch.RequestExecution(ctx, "req", 3, "mem://in", 0)
	require.NoError(t, err)
	_, err = f.disp.Dispatch(ctx, exec.ID)
	require.NoError(t, err)

	got, err := f.orch.CompleteTask(ctx, "bob", exec.ID, 0, []string{"mem://out"},
		binary.LittleEndian.AppendUint64(nil, 0))
	require.NoError(t, err)
	require.Len(t, got.Tasks, 2)

	n, err := f.disp.Dispatch(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = f.orch.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("amy"), got.Tasks[1].AssignedNode)
}

func TestDispatch_NoEligibleNode(t *testing.T) {
	f := newFixture(t, events.NewRecorder(), []domain.TaskID{1, 2},
		domain.Node{Owner: "amy", Stake: 40_000, Specializations: []domain.TaskID{1}},
	)
	ctx := context.Background()
	exec, err := f.orch.RequestExecution(ctx, "req", 3, "mem://in", 0)
	require.NoError(t, err)

	n, err := f.disp.Dispatch(ctx, exec.ID)
	require.ErrorIs(t, err, domain.ErrIneligibleNode)
	assert.Equal(t, 1, n)

	got, err := f.orch.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRequested, got.Status)
	assert.Equal(t, domain.TaskPending, got.Tasks[1].State)
}

func TestRun_AnswersSelectionRequests(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		busLog := mocks.NewMockLogger(ctrl)
		busLog.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
		busLog.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
		bus := events.NewBus(busLog)

		f := newFixture(t, bus, []domain.TaskID{1, 2},
			domain.Node{Owner: "amy", Stake: 40_000, Specializations: []domain.TaskID{1, 2}},
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- f.disp.Run(ctx, bus) }()
		synctest.Wait()

		exec, err := f.orch.RequestExecution(context.Background(), "req", 3, "mem://in", 0)
		require.NoError(t, err)
		synctest.Wait()

		got, err := f.orch.Execution(context.Background(), exec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionInProgress, got.Status)

		cancel()
		require.NoError(t, <-done)
	})
}

func TestRun_Disabled(t *testing.T) {
	f := newFixture(t, events.NewRecorder(), []domain.TaskID{1})
	disp := dispatch.New(f.orch, nil, "", f.ledger, f.log, telemetry.NewNoOpTracer())
	assert.False(t, disp.Enabled())
	require.NoError(t, disp.Run(context.Background(), nil))
}

func TestRun_EndsWhenSourceCloses(t *testing.T) {
	f := newFixture(t, events.NewRecorder(), []domain.TaskID{1})
	ctrl := gomock.NewController(t)

	ch := make(chan domain.Event, 1)
	ch <- domain.Event{Kind: domain.EventTaskCompleted, ExecutionID: 99}
	close(ch)
	unsubscribed := false

	source := mocks.NewMockEventSource(ctrl)
	source.EXPECT().Subscribe(0).Return((<-chan domain.Event)(ch), func() { unsubscribed = true })

	require.NoError(t, f.disp.Run(context.Background(), source))
	assert.True(t, unsubscribed)
}
