package domain_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/core/domain"
)

func TestNewExecution(t *testing.T) {
	m := &domain.Model{ID: 4, TaskIDs: []domain.TaskID{10, 20, 30}}
	now := time.Unix(1700000000, 0)

	e := domain.NewExecution(99, m, "carol", "s3://input", 500, now)

	assert.Equal(t, domain.ExecutionRequested, e.Status)
	assert.Equal(t, now, e.StartedAt)
	require.Len(t, e.Tasks, 3)
	for i, rec := range e.Tasks {
		assert.Equal(t, uint64(i), rec.Index)
		assert.Equal(t, m.TaskIDs[i], rec.TaskID)
		assert.Equal(t, domain.TaskPending, rec.State)
		assert.False(t, rec.IsShadow())
	}
}

func TestExecution_FindTaskSkipsShadows(t *testing.T) {
	m := &domain.Model{ID: 1, TaskIDs: []domain.TaskID{5}}
	e := domain.NewExecution(1, m, "carol", "in", 0, time.Now())
	orig := uint64(0)
	e.Tasks = append([]domain.TaskExecutionStatus{{Index: 1, TaskID: 5, TaskToVerify: &orig}}, e.Tasks...)

	idx, ok := e.FindTask(5)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = e.FindTask(6)
	assert.False(t, ok)
}

func TestExecution_AllPrimary(t *testing.T) {
	m := &domain.Model{ID: 1, TaskIDs: []domain.TaskID{1, 2}}
	e := domain.NewExecution(1, m, "carol", "in", 0, time.Now())
	completed := func(r *domain.TaskExecutionStatus) bool { return r.State == domain.TaskCompleted }

	e.Tasks[0].State = domain.TaskCompleted
	assert.False(t, e.AllPrimary(completed))

	e.Tasks[1].State = domain.TaskCompleted
	orig := uint64(0)
	e.Tasks = append(e.Tasks, domain.TaskExecutionStatus{Index: 2, TaskID: 1, TaskToVerify: &orig, State: domain.TaskPendingVerification})
	assert.True(t, e.AllPrimary(completed))
}

func TestExecution_CloneIsDeep(t *testing.T) {
	m := &domain.Model{ID: 1, TaskIDs: []domain.TaskID{1}}
	e := domain.NewExecution(1, m, "carol", "in", 0, time.Now())
	orig := uint64(0)
	e.Tasks[0].OutputLocations = []string{"a"}
	e.Tasks = append(e.Tasks, domain.TaskExecutionStatus{TaskToVerify: &orig})

	c := e.Clone()
	c.Tasks[0].State = domain.TaskCompleted
	c.Tasks[0].OutputLocations[0] = "b"
	*c.Tasks[1].TaskToVerify = 7

	assert.Equal(t, domain.TaskPending, e.Tasks[0].State)
	assert.Equal(t, "a", e.Tasks[0].OutputLocations[0])
	assert.Equal(t, uint64(0), *e.Tasks[1].TaskToVerify)
}

func TestTaskState_CanTransition(t *testing.T) {
	allowed := map[domain.TaskState][]domain.TaskState{
		domain.TaskPending:             {domain.TaskAssigned},
		domain.TaskAssigned:            {domain.TaskInProgress, domain.TaskCompleted, domain.TaskFailed},
		domain.TaskInProgress:          {domain.TaskCompleted, domain.TaskFailed},
		domain.TaskCompleted:           nil,
		domain.TaskFailed:              {domain.TaskPending},
		domain.TaskPendingVerification: {domain.TaskVerified},
		domain.TaskVerified:            nil,
	}

	for from := domain.TaskPending; from <= domain.TaskVerified; from++ {
		for to := domain.TaskPending; to <= domain.TaskVerified; to++ {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_TextEncoding(t *testing.T) {
	rec := domain.TaskExecutionStatus{TaskID: 3, State: domain.TaskPendingVerification}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"pending_verification"`)
	assert.NotContains(t, string(b), "start_time")

	var back domain.TaskExecutionStatus
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, domain.TaskPendingVerification, back.State)

	var s domain.ExecutionStatus
	require.NoError(t, s.UnmarshalText([]byte("canceled")))
	assert.Equal(t, domain.ExecutionCanceled, s)
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
	assert.False(t, domain.ExecutionCanceled.AcceptsTransitions())
	assert.True(t, domain.ExecutionInProgress.AcceptsTransitions())
}

func TestExecution_CheckCapacity(t *testing.T) {
	m := &domain.Model{ID: 1, TaskIDs: []domain.TaskID{1}}
	e := domain.NewExecution(1, m, "carol", "in", 0, time.Now())
	require.NoError(t, e.CheckCapacity())

	e.InputLocation = strings.Repeat("x", domain.MaxLocationLen+1)
	assert.ErrorIs(t, e.CheckCapacity(), domain.ErrCapacityExceeded)

	e.InputLocation = "in"
	e.Tasks[0].OutputLocations = make([]string, domain.MaxOutputsPerStatus+1)
	assert.ErrorIs(t, e.CheckCapacity(), domain.ErrCapacityExceeded)
}

func TestCommittee(t *testing.T) {
	c, err := domain.NewCommittee([]domain.Identity{"oracle-1"})
	require.NoError(t, err)
	assert.True(t, c.Authorized("oracle-1"))
	assert.False(t, c.Authorized("mallory"))

	require.NoError(t, c.Replace([]domain.Identity{"oracle-2"}))
	assert.False(t, c.Authorized("oracle-1"))
	assert.Equal(t, []domain.Identity{"oracle-2"}, c.Members())

	tooMany := make([]domain.Identity, domain.MaxCommitteeMembers+1)
	for i := range tooMany {
		tooMany[i] = domain.Identity("o" + strings.Repeat("x", i))
	}
	assert.ErrorIs(t, c.Replace(tooMany), domain.ErrCapacityExceeded)
	assert.ErrorIs(t, c.Replace([]domain.Identity{""}), domain.ErrInvalidIdentifier)
	assert.Equal(t, []domain.Identity{"oracle-2"}, c.Members())
}

func TestConfig_Validate(t *testing.T) {
	cfg := domain.DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Policy.SamplingThreshold = 101
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)

	cfg = domain.DefaultConfig()
	cfg.Store.Backend = "etcd"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)

	cfg = domain.DefaultConfig()
	cfg.Store.Backend = domain.BackendPostgres
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)

	cfg = domain.DefaultConfig()
	cfg.Policy.DispatchAs = "oracle"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	cfg.Policy.Schedulers = []domain.Identity{"oracle"}
	assert.NoError(t, cfg.Validate())
}
