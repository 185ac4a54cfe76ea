package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/pkg/models"
)

func TestLogConfigFrom(t *testing.T) {
	c := LogConfigFrom("debug", models.LoggingConfig{Format: "text", File: "/tmp/x.log", MaxSize: 5, Compress: true})
	if c.Level != "debug" || c.Format != "text" || c.File != "/tmp/x.log" || c.MaxSize != 5 || !c.Compress {
		t.Fatalf("config = %+v", c)
	}
}

func TestLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "signer.log")
	l, err := NewLogger(LogConfig{Level: "debug", Format: "json", File: path}, "test")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.WithField("session_id", "s-1").Info("signed request")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["message"] != "signed request" || entry["session_id"] != "s-1" || entry["service"] != ServiceName || entry["severity"] != "info" || entry["version"] != "test" {
		t.Fatalf("unexpected entry %v", entry)
	}
	caller, _ := entry["caller"].(string)
	if !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("caller = %q", caller)
	}
}

func TestNewLoggerLevelFallback(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "nonsense", Format: "text"}, "test")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Level != logrus.InfoLevel {
		t.Fatalf("level = %s, want info", l.Level)
	}
	if _, ok := l.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("formatter = %T", l.Formatter)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close without file: %v", err)
	}
}

func TestInstallRoutesStandardLogger(t *testing.T) {
	std := logrus.StandardLogger()
	prevOut, prevLevel, prevFormatter := std.Out, std.Level, std.Formatter
	prevHooks := std.ReplaceHooks(make(logrus.LevelHooks))
	t.Cleanup(func() {
		std.SetOutput(prevOut)
		std.SetLevel(prevLevel)
		std.SetFormatter(prevFormatter)
		std.ReplaceHooks(prevHooks)
	})

	path := filepath.Join(t.TempDir(), "std.log")
	l, err := NewLogger(LogConfig{Level: "warn", Format: "json", File: path}, "test")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Install()
	logrus.Info("dropped")
	logrus.Warn("kept")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "dropped") || !strings.Contains(string(data), `"service":"rednote-signer"`) {
		t.Fatalf("unexpected log contents:\n%s", data)
	}
}

func TestBasicLogger(t *testing.T) {
	l := BasicLogger()
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok || l.Level != logrus.InfoLevel {
		t.Fatalf("unexpected basic logger %+v", l)
	}
}
