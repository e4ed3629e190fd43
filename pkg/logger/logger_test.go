package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/wonny/sentiment-ls/pkg/config"
)

func newTestLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&config.Config{Env: "development", LogLevel: level, LogFormat: "json"}, buf)
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
		{"disabled", zerolog.InfoLevel},
		{" fatal ", zerolog.FatalLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, "debug")

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { log.Debug("window not full") }, "window not full", "debug"},
		{"info", func() { log.Info("backtest finished") }, "backtest finished", "info"},
		{"warn", func() { log.Warn("using cached panel") }, "using cached panel", "warn"},
		{"error", func() { log.Error("price fetch failed") }, "price fetch failed", "error"},
		{"infof", func() { log.Infof("dates: %d", 42) }, "dates: 42", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			entry := decode(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %q", entry["level"], tt.wantLevel)
			}
			if entry["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %q", entry["message"], tt.wantMsg)
			}
			if entry["env"] != "development" {
				t.Errorf("env = %v, want development", entry["env"])
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, "warn")

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info below warn level was written: %s", buf.String())
	}

	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn message missing: %s", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, "info")

	log.WithFields(map[string]interface{}{
		"factor":  "SENT_L1",
		"horizon": 1,
	}).WithField("dates", 250).Info("run summary")

	entry := decode(t, &buf)
	if entry["factor"] != "SENT_L1" {
		t.Errorf("factor = %v, want SENT_L1", entry["factor"])
	}
	if entry["horizon"] != float64(1) {
		t.Errorf("horizon = %v, want 1", entry["horizon"])
	}
	if entry["dates"] != float64(250) {
		t.Errorf("dates = %v, want 250", entry["dates"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, "info")

	log.WithError(errors.New("connection refused")).Error("operation failed")

	entry := decode(t, &buf)
	if entry["error"] != "connection refused" {
		t.Errorf("error = %v, want 'connection refused'", entry["error"])
	}
}

func TestModuleAndRun(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, "info")

	log.Module("pipeline").Run("run-1").Info("Starting backtest run")

	entry := decode(t, &buf)
	if entry["module"] != "pipeline" {
		t.Errorf("module = %v, want pipeline", entry["module"])
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", entry["run_id"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)

	log.Info("test message")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("console output missing message: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	// must not panic
	Nop().WithField("k", "v").Error("discarded")
}
