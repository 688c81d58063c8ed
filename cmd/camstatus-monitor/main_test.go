package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/camstatus-go/pkg/config"
	"github.com/courtside/camstatus-go/pkg/log"
	"github.com/courtside/camstatus-go/pkg/wire"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv(config.EnvURL, "ws://from-env:8080/ws/camera-status")

	path := filepath.Join(t.TempDir(), "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint:
  url: ws://from-file:8080/ws/camera-status
history: 20
log:
  level: warn
`), 0o600))

	cfg, err := loadConfig(Flags{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "ws://from-env:8080/ws/camera-status", cfg.Endpoint.URL)
	assert.Equal(t, 20, cfg.History)
	assert.Equal(t, "warn", cfg.Log.Level)

	cfg, err = loadConfig(Flags{
		ConfigFile:  path,
		URL:         "wss://from-flag/ws/camera-status",
		TokenFile:   "/etc/camstatus/token.yaml",
		LogLevel:    "debug",
		LogFormat:   "json",
		ProtocolLog: "capture.clog",
		Relay:       "tcp://broker:1883",
	})
	require.NoError(t, err)
	assert.Equal(t, "wss://from-flag/ws/camera-status", cfg.Endpoint.URL)
	assert.Equal(t, "/etc/camstatus/token.yaml", cfg.Credentials.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "capture.clog", cfg.ProtocolLog)
	assert.True(t, cfg.Relay.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.Relay.Broker)
}

func TestLoadConfigRejectsBadFlag(t *testing.T) {
	_, err := loadConfig(Flags{URL: "http://not-a-websocket"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = loadConfig(Flags{LogFormat: "xml"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := setupLogging(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestLogSinkSwitch(t *testing.T) {
	var first, second bytes.Buffer
	sink := &logSink{w: &first}
	io.WriteString(sink, "a")
	sink.set(&second)
	io.WriteString(sink, "b")
	assert.Equal(t, "a", first.String())
	assert.Equal(t, "b", second.String())
}

func TestSetupProtocolLog(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.Log.Level = "info"
	l, closeFn, err := setupProtocolLog(cfg, quiet)
	require.NoError(t, err)
	assert.Nil(t, l)
	closeFn()

	cfg.ProtocolLog = filepath.Join(t.TempDir(), "capture.clog")
	cfg.Log.Level = "debug"
	l, closeFn, err = setupProtocolLog(cfg, quiet)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, 2, l.(*log.MultiLogger).Len())

	l.Log(log.Event{Timestamp: time.Now(), Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{NewState: "CONNECTING"}})
	closeFn()

	reader, err := log.NewReader(cfg.ProtocolLog)
	require.NoError(t, err)
	defer reader.Close()
	events, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "CONNECTING", events[0].StateChange.NewState)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{out: &buf}

	p.OnConnectionChange(true)
	p.OnSnapshot(wire.CameraSnapshot{ID: "7", Name: "Court 7", Status: wire.CameraActive})
	p.OnStatusChange(wire.StatusNotification{
		CameraID: "7", CameraName: "Court 7",
		OldStatus: wire.CameraActive, NewStatus: wire.CameraError,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	p.OnConnectionChange(false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[CONN]     connected", lines[0])
	assert.Equal(t, `[SNAPSHOT] 7 "Court 7" ACTIVE`, lines[1])
	assert.Contains(t, lines[2], "ACTIVE -> ERROR")
	assert.Equal(t, "[CONN]     disconnected", lines[3])
}
