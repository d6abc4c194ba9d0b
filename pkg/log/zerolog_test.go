package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithLogger(zerolog.New(&buf)).
		With(String("component", "writer"), Path("/tmp/a.srlog"))

	logger.Info("frames flushed",
		Int("frames", 3),
		Uint64("persisted", 9),
		FrameIndex(8),
		Float64("fps", 90.5),
		Bool("sync", true),
		Duration("took", 2*time.Millisecond),
		Err(errors.New("disk full")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "frames flushed", got["message"])
	assert.Equal(t, "writer", got["component"])
	assert.Equal(t, "/tmp/a.srlog", got["path"])
	assert.Equal(t, float64(3), got["frames"])
	assert.Equal(t, float64(9), got["persisted"])
	assert.Equal(t, float64(8), got["frame"])
	assert.Equal(t, 90.5, got["fps"])
	assert.Equal(t, true, got["sync"])
	assert.Equal(t, "disk full", got["error"])
	assert.Contains(t, got, "took")
}

func TestZerologAdapter_DisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	logger.Debug("hidden", String("k", "v"))
	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, zerolog.WarnLevel, logger.Logger().GetLevel())
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))

	l := NewNoopLogger()
	assert.Same(t, l, OrNoop(l))
	assert.NotPanics(t, func() { OrNoop(nil).With(String("a", "b")).Error("x") })
}
