package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNamedFallsBackToNop(t *testing.T) {
	l := Named(nil, "svc.housing")
	require.NotNil(t, l)
	l.Info("discarded")
}

func TestNamedKeepsCore(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Named(zap.New(core), "svc.herd").Info("animal registered")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "svc.herd", entries[0].LoggerName)
}

func TestMust(t *testing.T) {
	assert.Panics(t, func() { Must(nil, errors.New("boom")) })
	l, err := New(Options{})
	require.NoError(t, err)
	assert.Same(t, l, Must(l, nil))
}

func TestNewHonoursOptions(t *testing.T) {
	debug, err := New(Options{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zap.DebugLevel))

	quiet, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zap.InfoLevel))
	assert.True(t, quiet.Core().Enabled(zap.WarnLevel))

	_, err = New(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
