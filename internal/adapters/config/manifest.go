package config

import (
	"io"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

// DecodeTask reads a task manifest. Unknown keys are rejected.
func DecodeTask(r io.Reader) (*domain.Task, error) {
	var t domain.Task
	if err := decodeStrict(r, &t); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrValidation, err.Error()), "manifest", "task")
	}
	return &t, nil
}

// DecodeModel reads a model manifest. Unknown keys are rejected.
func DecodeModel(r io.Reader) (*domain.Model, error) {
	var m domain.Model
	if err := decodeStrict(r, &m); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrValidation, err.Error()), "manifest", "model")
	}
	return &m, nil
}
