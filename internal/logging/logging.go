// Package logging builds the rotating structured logger shared by every
// uzenet daemon. Writes are synchronous: each log call encodes and writes
// its entry on the caller's goroutine, and lumberjack rotates the backing
// file inside that same Write call, so a slow disk or a rotation delays the
// caller. There is no separate logger goroutine or write buffer.
package logging

import (
	"log/syslog"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls where and how verbosely a daemon logs.
type Config struct {
	// Path is the log file written through the rotating sink. Empty disables
	// the file sink (stderr-only).
	Path string
	// Level is one of debug/info/warn/error; invalid values fall back to info.
	Level string
	// MaxSizeMB is the size in megabytes at which the log file rotates.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to retain.
	MaxBackups int
	// MaxAgeDays is the max age in days of a rotated file before deletion.
	MaxAgeDays int
	// Syslog enables an additional core that writes to the local syslog
	// daemon under the named facility (LOG_DAEMON or LOG_LOCAL6 per spec).
	Syslog bool
	// SyslogFacility is "daemon" or "local6"; defaults to "daemon".
	SyslogFacility string
}

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New builds a named *zap.Logger for component (e.g. "roomd", "vfsd").
func New(component string, cfg Config) (*zap.Logger, error) {
	level, ok := levelMap[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level })

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core
	if cfg.Path != "" {
		hook := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(hook), enabler))
	} else {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler))
	}

	if cfg.Syslog {
		facility := cfg.SyslogFacility
		if facility == "" {
			facility = "daemon"
		}
		priority := syslog.LOG_DAEMON
		if facility == "local6" {
			priority = syslog.LOG_LOCAL6
		}
		if w, err := syslog.New(priority|syslog.LOG_INFO, component); err == nil {
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), enabler))
		}
		// A syslog connection failure is non-fatal: the file/stderr core
		// still carries every line.
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.AddCaller()).Named(component)
	return logger, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}
