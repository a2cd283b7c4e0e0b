package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/logger"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger with an injected bytes.Buffer for isolated testing.
// It also sets NO_COLOR=1 to ensure deterministic output without ANSI escape codes.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New().(*logger.Logger)
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name       string
		debug      bool
		log        func(lg *logger.Logger)
		goldenName string
	}{
		{
			name: "info with attributes",
			log: func(lg *logger.Logger) {
				lg.Info("node registered", "owner", "alice", "stake", 30000)
			},
			goldenName: "info_attrs",
		},
		{
			name: "warning",
			log: func(lg *logger.Logger) {
				lg.Warn("stake below admission minimum", "owner", "bob")
			},
			goldenName: "warn_basic",
		},
		{
			name: "debug filtered by default",
			log: func(lg *logger.Logger) {
				lg.Debug("span finished", "span", "stake.admit")
			},
			goldenName: "debug_filtered",
		},
		{
			name:  "debug enabled",
			debug: true,
			log: func(lg *logger.Logger) {
				lg.Debug("span finished", "span", "stake.admit")
			},
			goldenName: "debug_enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			if tt.debug {
				lg.SetLevel(slog.LevelDebug)
			}
			tt.log(lg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{
			name:       "domain chain with metadata",
			err:        zerr.With(zerr.Wrap(domain.ErrBelowMinimum, "node rejected"), "stake", 100),
			goldenName: "error_domain_chain",
		},
		{
			name: "stdlib chain",
			err: fmt.Errorf("failed to initialize service: %w",
				fmt.Errorf("failed to connect: %w", errors.New("connection refused"))),
			goldenName: "error_chain_stdlib",
		},
		{
			name:       "multiline error",
			err:        errors.New("yaml: unmarshal errors:\n  line 3: cannot unmarshal"),
			goldenName: "error_multiline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSONKeepsMetadata(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Error(zerr.With(zerr.Wrap(domain.ErrBelowMinimum, "node rejected"), "stake", 100))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "node rejected: stake below minimum: stake error", record["msg"])
	assert.InDelta(t, 100, record["stake"], 0)
}

func TestLogger_Configure(t *testing.T) {
	lg, buf := newTestLogger(t)

	require.NoError(t, lg.Configure(domain.LogFormatJSON, "debug"))
	lg.Debug("hello", "k", "v")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "v", record["k"])

	err := lg.Configure(domain.LogFormatPretty, "verbose")
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestResolveFormat(t *testing.T) {
	t.Setenv("CI", "")
	assert.Equal(t, domain.LogFormatPretty, logger.ResolveFormat(domain.LogFormatPretty, &bytes.Buffer{}))
	assert.Equal(t, domain.LogFormatJSON, logger.ResolveFormat(domain.LogFormatJSON, &bytes.Buffer{}))
	assert.Equal(t, domain.LogFormatJSON, logger.ResolveFormat(domain.LogFormatAuto, &bytes.Buffer{}))

	t.Setenv("CI", "true")
	assert.Equal(t, domain.LogFormatPretty, logger.ResolveFormat(domain.LogFormatPretty, &bytes.Buffer{}))
}

func TestCollectErrorEntries(t *testing.T) {
	inner := zerr.With(zerr.New("inner"), "inner_key", "inner_val")
	outer := zerr.With(zerr.Wrap(inner, "outer"), "outer_key", "outer_val")

	entries := logger.CollectErrorEntries(outer)
	require.Len(t, entries, 2)
	assert.Equal(t, "outer", entries[0].Message)
	assert.Equal(t, map[string]any{"outer_key": "outer_val"}, entries[0].Metadata)
	assert.Equal(t, "inner", entries[1].Message)
	assert.Equal(t, map[string]any{"inner_key": "inner_val"}, entries[1].Metadata)

	assert.Empty(t, logger.CollectErrorEntries(nil))
}

func TestFormatErrorEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{
			name:    "single entry",
			entries: []logger.ErrorEntry{{Message: "single error"}},
			want:    "Error: single error",
		},
		{
			name:    "two entries with caused by",
			entries: []logger.ErrorEntry{{Message: "outer error"}, {Message: "inner error"}},
			want:    "Error: outer error\n\n  Caused by:\n    → inner error",
		},
		{
			name: "metadata sorted on cause",
			entries: []logger.ErrorEntry{
				{Message: "main"},
				{Message: "cause", Metadata: map[string]any{"zebra": "z", "alpha": "a"}},
			},
			want: "Error: main\n\n  Caused by:\n    → cause\n      alpha: a\n      zebra: z",
		},
		{
			name:    "empty entries",
			entries: []logger.ErrorEntry{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntries(tt.entries))
		})
	}
}
