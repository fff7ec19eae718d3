package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelInfo, Format: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelDebug, Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	l.Fatal("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.Equal(t, l, l.WithError(errors.New("err")))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(Logger)
		level string
	}{
		{"debug", func(l Logger) { l.Debug("m") }, "debug"},
		{"info", func(l Logger) { l.Info("m") }, "info"},
		{"warn", func(l Logger) { l.Warn("m") }, "warn"},
		{"error", func(l Logger) { l.Error("m") }, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger(t)
			tt.log(l)
			assert.Contains(t, buf.String(), `"level":"`+tt.level+`"`)
		})
	}
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("trial_id", "li_2023_p4"), Strings("flags", []string{"bolus_missing"})).Info("built")
	assert.Contains(t, buf.String(), `"trial_id":"li_2023_p4"`)
	assert.Contains(t, buf.String(), `"flags":["bolus_missing"]`)
}

func TestZapLogger_WithError(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(errors.New("disk full")).Error("write failed")
	assert.Contains(t, buf.String(), `"error":"disk full"`)
}

func TestErr_Nil(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value)
}

func TestNewLoggerFromCore_Observer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLoggerFromCore(core).Named("extract")
	l.Debug("hidden")
	l.Info("rows read", Int("rows", 12), Stage("extract"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "rows read", entry.Message)
	assert.Equal(t, "extract", entry.LoggerName)
	assert.Equal(t, int64(12), entry.ContextMap()["rows"])
	assert.Equal(t, "extract", entry.ContextMap()["stage"])
}

func TestNewWriterLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarn)
	l.Info("quiet")
	assert.Empty(t, buf.String())

	require.True(t, SetLevel(l, LevelDebug))
	l.Info("loud")
	assert.Contains(t, buf.String(), "loud")

	assert.False(t, SetLevel(NewNopLogger(), LevelDebug))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestLogStageDuration(t *testing.T) {
	l, buf := newTestLogger(t)
	LogStageDuration(l, "validate", time.Now(), Int("records", 3))
	out := buf.String()
	assert.Contains(t, out, "stage completed")
	assert.Contains(t, out, `"stage":"validate"`)
	assert.Contains(t, out, "duration_ms")
	assert.Contains(t, out, `"records":3`)
}

func TestDefault_SetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}

//Personal.AI order the ending
