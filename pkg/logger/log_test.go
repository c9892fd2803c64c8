package logger

import (
	"context"
	"testing"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelParsing(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("DEBUG").zapLevel())
	assert.Equal(t, zapcore.WarnLevel, WarnLevel.zapLevel())
	assert.Equal(t, zapcore.InfoLevel, Level("nonsense").zapLevel())
}

func TestContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	ctx := util.WithRequestID(context.Background(), "req-1")
	l.InfoContext(ctx, "placed", NewField("book", "1:BTC-USD"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "1:BTC-USD", fields["book"])
}

func TestErrorUsesWrappedStack(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	l := FromZap(zap.New(core))

	l.Error(errors.Wrap(errors.New("boom"), "commit"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "commit: boom", entry.Message)
	assert.Contains(t, entry.Stack, "TestErrorUsesWrappedStack")
}
