package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// Init configures the global logger. Level and format may be overridden
// via CHATDB_LOG_LEVEL and CHATDB_LOG_FORMAT for tests and production.
func Init(level, format string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("CHATDB_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	fm := strings.ToLower(strings.TrimSpace(format))
	if fm == "" {
		fm = strings.ToLower(strings.TrimSpace(os.Getenv("CHATDB_LOG_FORMAT")))
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if fm == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zl)
	Log = zap.New(core)
}

// Sync flushes buffered log entries. Safe to call with a nil logger.
func Sync() {
	if Log == nil {
		return
	}
	_ = Log.Sync()
}

func init() {
	// keep a usable logger before Init runs (tests, helper binaries)
	if Log == nil {
		Log = zap.NewNop()
	}
}
