package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewZapPrintf(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lg := NewZap(zap.New(core))

	lg.Printf("Serving at %s", "http://127.0.0.1:8080")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Serving at http://127.0.0.1:8080", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestNewZapNil(t *testing.T) {
	assert.NotPanics(t, func() {
		NewZap(nil).Printf("dropped")
		Nop().Printf("dropped too")
	})
}
