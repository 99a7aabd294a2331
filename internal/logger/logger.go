package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar   *zap.SugaredLogger
	base    *zap.Logger
	logFile *os.File
)

// Init initializes the global logger
// Logs are written to ~/.config/qdecomp/qdecomp.log
func Init(debug bool) error {
	logPath, err := getLogPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}

	// Truncated on each run; one log per database session
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(logFile),
		level,
	)

	// Skip the helpers below so callers show up as the log site
	base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar = base.Sugar()

	Info("logger initialized", "path", logPath, "debug", debug)
	return nil
}

// Close flushes and closes the logger
func Close() {
	if base != nil {
		_ = base.Sync()
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	base, sugar, logFile = nil, nil, nil
}

func getLogPath() (string, error) {
	if v := os.Getenv("QDECOMP_LOG_FILE"); v != "" {
		return v, nil
	}
	if v := os.Getenv("QDECOMP_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "qdecomp.log"), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "qdecomp", "qdecomp.log"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "qdecomp", "qdecomp.log"), nil
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

func write(lvl level, msg string, keysAndValues []interface{}) {
	if sugar == nil {
		return
	}
	switch lvl {
	case levelDebug:
		sugar.Debugw(msg, keysAndValues...)
	case levelInfo:
		sugar.Infow(msg, keysAndValues...)
	case levelWarn:
		sugar.Warnw(msg, keysAndValues...)
	default:
		sugar.Errorw(msg, keysAndValues...)
	}
}

func Debug(msg string, keysAndValues ...interface{}) { write(levelDebug, msg, keysAndValues) }
func Info(msg string, keysAndValues ...interface{})  { write(levelInfo, msg, keysAndValues) }
func Warn(msg string, keysAndValues ...interface{})  { write(levelWarn, msg, keysAndValues) }
func Error(msg string, keysAndValues ...interface{}) { write(levelError, msg, keysAndValues) }

// Fields prefixes every line it writes with a fixed set of key/value pairs.
type Fields []interface{}

func With(keysAndValues ...interface{}) Fields {
	return Fields(keysAndValues)
}

// Func scopes lines to the function starting at start.
func Func(start fmt.Stringer) Fields {
	return With("func", start.String())
}

// Session scopes lines to a session handle and its title.
func Session(id fmt.Stringer, title string) Fields {
	return With("session", id.String(), "title", title)
}

// With returns f extended by more pairs.
func (f Fields) With(keysAndValues ...interface{}) Fields {
	out := make(Fields, 0, len(f)+len(keysAndValues))
	return append(append(out, f...), keysAndValues...)
}

func (f Fields) Debug(msg string, keysAndValues ...interface{}) {
	write(levelDebug, msg, f.With(keysAndValues...))
}

func (f Fields) Info(msg string, keysAndValues ...interface{}) {
	write(levelInfo, msg, f.With(keysAndValues...))
}

func (f Fields) Warn(msg string, keysAndValues ...interface{}) {
	write(levelWarn, msg, f.With(keysAndValues...))
}

func (f Fields) Error(msg string, keysAndValues ...interface{}) {
	write(levelError, msg, f.With(keysAndValues...))
}
