// Package runlog builds the zap loggers a run writes to: the run log (console
// plus file), the verification failure log and per-fraction transfer logs.
package runlog

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func humanEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	return zapcore.NewConsoleEncoder(cfg)
}

// messageEncoder writes the message and nothing else.
func messageEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	})
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Log is a zap logger bound to a file it owns.
type Log struct {
	*zap.Logger
	Path string
	file *os.File
}

// Close flushes the logger and closes its file.
func (l *Log) Close() error {
	_ = l.Logger.Sync()
	return l.file.Close()
}

// Open creates the run log at dir/name. When console is non-nil every entry
// is also written there.
func Open(dir, name string, console io.Writer, level zapcore.Level) (*Log, error) {
	path := filepath.Join(dir, name)
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	cores := []zapcore.Core{zapcore.NewCore(humanEncoder(), zapcore.AddSync(f), level)}
	if console != nil {
		cores = append(cores, zapcore.NewCore(humanEncoder(), zapcore.AddSync(console), level))
	}
	return &Log{Logger: zap.New(zapcore.NewTee(cores...)), Path: path, file: f}, nil
}

// OpenFraction opens the transfer log inside a fraction's import folder.
func OpenFraction(dir string) (*Log, error) {
	path := filepath.Join(dir, FractionLogName)
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(humanEncoder(), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Log{Logger: zap.New(core), Path: path, file: f}, nil
}

// Tee returns a logger writing to every given logger.
func Tee(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			cores = append(cores, l.Core())
		}
	}
	return zap.New(zapcore.NewTee(cores...))
}
