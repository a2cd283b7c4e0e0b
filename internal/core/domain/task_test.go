package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/core/domain"
	"gopkg.in/yaml.v3"
)

func validTask(id domain.TaskID) domain.Task {
	return domain.Task{
		ID:             id,
		ModelID:        1,
		Description:    "embedding",
		ComputeUnits:   4,
		Inputs:         []domain.TensorSpec{tensor("s3://in")},
		Outputs:        []domain.TensorSpec{tensor("s3://out")},
		WeightLocation: "s3://weights",
	}
}

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Task)
		wantErr error
	}{
		{name: "valid", mutate: func(*domain.Task) {}},
		{name: "zero id", mutate: func(t *domain.Task) { t.ID = 0 }, wantErr: domain.ErrInvalidIdentifier},
		{name: "no inputs", mutate: func(t *domain.Task) { t.Inputs = nil }, wantErr: domain.ErrEmptyTensorList},
		{name: "no outputs", mutate: func(t *domain.Task) { t.Outputs = nil }, wantErr: domain.ErrEmptyTensorList},
		{
			name:    "empty shape",
			mutate:  func(t *domain.Task) { t.Inputs[0].Shape = nil },
			wantErr: domain.ErrEmptyShape,
		},
		{
			name:    "blank dimension",
			mutate:  func(t *domain.Task) { t.Outputs[0].Shape = []domain.Dimension{""} },
			wantErr: domain.ErrEmptyShape,
		},
		{
			name:    "empty location",
			mutate:  func(t *domain.Task) { t.Outputs[0].Location = "" },
			wantErr: domain.ErrEmptyLocation,
		},
		{
			name:    "missing weights",
			mutate:  func(t *domain.Task) { t.WeightLocation = "" },
			wantErr: domain.ErrMissingWeightLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask(1)
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestTask_CheckCapacity(t *testing.T) {
	task := validTask(1)
	require.NoError(t, task.CheckCapacity())

	task.Description = strings.Repeat("x", domain.MaxDescriptionLen+1)
	assert.ErrorIs(t, task.CheckCapacity(), domain.ErrCapacityExceeded)

	task = validTask(1)
	task.Inputs[0].Shape = make([]domain.Dimension, domain.MaxShapeRank+1)
	assert.ErrorIs(t, task.CheckCapacity(), domain.ErrCapacityExceeded)

	task = validTask(1)
	for range domain.MaxTaskOutputs {
		task.Outputs = append(task.Outputs, tensor("o"))
	}
	assert.ErrorIs(t, task.CheckCapacity(), domain.ErrCapacityExceeded)
}

func TestDimension_Decoding(t *testing.T) {
	var spec domain.TensorSpec
	require.NoError(t, json.Unmarshal([]byte(`{"dtype":2,"shape":[1,"seq",768],"location":"mem://x"}`), &spec))
	assert.Equal(t, []domain.Dimension{"1", "seq", "768"}, spec.Shape)

	n, ok := spec.Shape[2].Size()
	assert.True(t, ok)
	assert.Equal(t, uint64(768), n)

	_, ok = spec.Shape[1].Size()
	assert.False(t, ok)

	var fromYAML domain.TensorSpec
	require.NoError(t, yaml.Unmarshal([]byte("dtype: 2\nshape: [1, seq]\nlocation: mem://y\n"), &fromYAML))
	assert.Equal(t, []domain.Dimension{"1", "seq"}, fromYAML.Shape)
}

func TestNode_Validate(t *testing.T) {
	n := domain.Node{Owner: "alice", Specializations: []domain.TaskID{1, 2}}
	require.NoError(t, n.Validate())
	assert.True(t, n.CanExecute(2))
	assert.False(t, n.CanExecute(3))

	n.Specializations = nil
	assert.ErrorIs(t, n.Validate(), domain.ErrEmptySpecializations)

	n = domain.Node{Specializations: []domain.TaskID{1}}
	assert.ErrorIs(t, n.Validate(), domain.ErrInvalidIdentifier)

	n = domain.Node{Owner: "bob", Specializations: make([]domain.TaskID, domain.MaxSpecializations+1)}
	assert.ErrorIs(t, n.CheckCapacity(), domain.ErrCapacityExceeded)
}
