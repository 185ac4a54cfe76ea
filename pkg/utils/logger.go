package utils

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/xmok/rednote-signer/pkg/models"
)

const ServiceName = "rednote-signer"

// LogConfig selects level, format and an optional rotated log file. Console
// output always goes to stderr so stdout carries only signed output.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

func LogConfigFrom(level string, c models.LoggingConfig) LogConfig {
	return LogConfig{
		Level:      level,
		Format:     c.Format,
		File:       c.File,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

func NewLogger(config LogConfig, version string) (*Logger, error) {
	l := &Logger{Logger: logrus.New()}

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(config.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(config.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
			DisableColors:   config.File != "",
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	out := io.Writer(os.Stderr)
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
			return nil, err
		}
		l.file = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    max(1, config.MaxSize),
			MaxBackups: max(0, config.MaxBackups),
			MaxAge:     max(0, config.MaxAge),
			Compress:   config.Compress,
		}
		out = io.MultiWriter(os.Stderr, l.file)
	}
	l.SetOutput(out)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	l.AddHook(&signerHook{service: ServiceName, version: version, hostname: hostname})
	return l, nil
}

// Install routes the logrus standard logger, which every signing component
// receives, through l.
func (l *Logger) Install() {
	std := logrus.StandardLogger()
	std.SetOutput(l.Out)
	std.SetLevel(l.Level)
	std.SetFormatter(l.Formatter)
	std.ReplaceHooks(l.Hooks)
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// signerHook stamps every entry with the service identity and the first
// caller outside logrus.
type signerHook struct {
	service  string
	version  string
	hostname string
}

func (h *signerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *signerHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.service
	entry.Data["version"] = h.version
	entry.Data["hostname"] = h.hostname
	if _, ok := entry.Data["caller"]; !ok {
		if caller := externalCaller(); caller != "" {
			entry.Data["caller"] = caller
		}
	}
	return nil
}

func externalCaller() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.HasSuffix(frame.File, "pkg/utils/logger.go") {
			fn := frame.Function
			if i := strings.LastIndex(fn, "/"); i >= 0 {
				fn = fn[i+1:]
			}
			return fn + ":" + filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
		if !more {
			return ""
		}
	}
}
