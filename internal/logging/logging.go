package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zap.InfoLevel)

	mu         sync.Mutex
	global     *zap.SugaredLogger
	outputFile *os.File
	outputPath string
)

func init() {
	global = build(nil)
}

// consoleEncoder keeps terminal output to a colored level tag and the
// message itself; timestamps belong in the log file, not the console.
func consoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "  ",
	})
}

func fileEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "  ",
	})
}

func build(file *os.File) *zap.SugaredLogger {
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), zapcore.AddSync(os.Stdout), level),
	}
	if file != nil {
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(file), level))
	}
	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

func log() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return global
}

// SetVerbose enables or disables debug logging for the current process.
func SetVerbose(enabled bool) {
	if enabled {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// Verbose reports whether debug logging is enabled.
func Verbose() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// SetOutputFile configures optional file logging while preserving console
// output. Passing an empty path disables file logging.
func SetOutputFile(path string) error {
	path = strings.TrimSpace(path)

	mu.Lock()
	defer mu.Unlock()

	if path == outputPath {
		return nil
	}

	if outputFile != nil {
		if err := outputFile.Close(); err != nil {
			outputFile = nil
			outputPath = ""
			global = build(nil)
			return err
		}
		outputFile = nil
		outputPath = ""
	}

	global = build(nil)
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	outputFile = f
	outputPath = path
	global = build(f)
	return nil
}

// Close flushes and closes the log file if one is configured.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if outputFile == nil {
		return nil
	}
	_ = global.Sync()
	err := outputFile.Close()
	outputFile = nil
	outputPath = ""
	global = build(nil)
	return err
}

// Infof logs at info level regardless of verbosity.
func Infof(format string, args ...any) {
	log().Infof(format, args...)
}

// Info logs its arguments at info level regardless of verbosity.
func Info(args ...any) {
	log().Info(args...)
}

// Debugf logs only when verbose mode is enabled.
func Debugf(format string, args ...any) {
	log().Debugf(format, args...)
}

// Warnf logs at warning level.
func Warnf(format string, args ...any) {
	log().Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...any) {
	log().Errorf(format, args...)
}
