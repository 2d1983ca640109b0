// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/formpilot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncBuffer is a goroutine safe buffer usable as a zap sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colours the level", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		sink := &syncBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "formpilot",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)
		GetLogger().Info("row processed")

		out := sink.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "row processed")
		assert.Contains(t, out, colorMap["green"])
		assert.Contains(t, out, colorReset)
		assert.Contains(t, out, "formpilot.")
	})

	t.Run("json logger emits structured entries", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		sink := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		GetLogger().Warn("status write failed", RecordFields(7, "a@x.com")...)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(sink.String()), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "status write failed", entry["msg"])
		assert.Equal(t, float64(7), entry["sheet_row"])
		assert.Equal(t, "a@x.com", entry["email"])
	})

	t.Run("level filter drops debug lines", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		sink := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Debug("hidden")
		GetLogger().Info("hidden too")
		assert.Empty(t, sink.String())
	})

	t.Run("log file receives entries", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		logFile := filepath.Join(t.TempDir(), "formpilot.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: logFile, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))
		GetLogger().Error("goes to the file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "goes to the file")
	})

	t.Run("only the first initialization wins", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		sink := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, sink)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("hello")
		assert.Contains(t, sink.String(), "First")
		assert.NotContains(t, sink.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger(), "a fallback logger is returned before initialization")

	Initialize(config.LoggerConfig{Level: "info"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Same(t, globalLogger.Load(), GetLogger())
}

func TestProgress(t *testing.T) {
	f := Progress(3, 10)
	assert.Equal(t, zap.String("progress", "3/10"), f)
}
