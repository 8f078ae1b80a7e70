package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", ServiceName: "roster-service", Output: &buf})

	log.Info("entry registered", "name", "Ana", "position", 3, "error", errors.New("none"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "entry registered", line["msg"])
	require.Equal(t, "roster-service", line["service"])
	require.Equal(t, "Ana", line["name"])
	require.Equal(t, float64(3), line["position"])
	require.Equal(t, "none", line["error"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("hidden")
	require.Zero(t, buf.Len())

	log.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestWith_OddFieldsIgnored(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf}).With("component", "scheduler", "dangling")

	log.Info("tick")
	require.Contains(t, buf.String(), `"component":"scheduler"`)
	require.NotContains(t, buf.String(), "dangling")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
