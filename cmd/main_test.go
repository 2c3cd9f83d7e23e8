package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

func observed() (func(string) (*zap.Logger, error), *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return func(string) (*zap.Logger, error) { return zap.New(core), nil }, logs
}

func TestRunInputErrorsAreLogged(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing argument", nil, media.ErrInputMissing},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.mp4")}, media.ErrInputNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newLogger, logs := observed()
			var stderr bytes.Buffer

			assert.Equal(t, 1, run(tt.args, &stderr, newLogger))
			assert.Empty(t, stderr.String())

			entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
			require.Len(t, entries, 1)
			err, ok := entries[0].ContextMap()["error"].(string)
			require.True(t, ok)
			assert.Contains(t, err, tt.want.Error())
		})
	}
}

func TestRunUsageErrors(t *testing.T) {
	newLogger, logs := observed()
	var stderr bytes.Buffer

	assert.Equal(t, 2, run([]string{"-nope"}, &stderr, newLogger))
	assert.Contains(t, stderr.String(), "Usage: framegrab")
	assert.Zero(t, logs.Len())

	assert.Equal(t, 0, run([]string{"-h"}, &stderr, newLogger))
}

func TestRunBadLogLevel(t *testing.T) {
	var stderr bytes.Buffer
	failing := func(string) (*zap.Logger, error) { return nil, errors.New("invalid log level") }
	assert.Equal(t, 1, run([]string{"movie.mp4"}, &stderr, failing))
	assert.Contains(t, stderr.String(), "invalid log level")
}
