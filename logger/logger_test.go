package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithMergesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := With(NewZapLoggerFrom(zap.New(core)), map[string]any{
		"subscription": "abc",
		"reference":    "ref",
	})

	log.Info("polling", map[string]any{"reference": "override", "attempt": 2})

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["subscription"])
	assert.Equal(t, "override", fields["reference"])
	assert.EqualValues(t, 2, fields["attempt"])
}

func TestWithNilLogger(t *testing.T) {
	log := With(nil, map[string]any{"k": "v"})
	assert.NotPanics(t, func() { log.Warn("ignored", nil) })
}

func TestNewZapLoggerLevels(t *testing.T) {
	assert.NotNil(t, NewZapLogger("debug", "json"))
	assert.NotNil(t, NewZapLogger("bogus", "console"))
}
