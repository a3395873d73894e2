package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Logger is a named sugared zap logger.
type Logger struct {
	*zap.SugaredLogger
}

func (l *Logger) Unwrap() *zap.SugaredLogger {
	return l.SugaredLogger
}

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(InfoLevel)
	root  *zap.Logger
)

// Setup rebuilds the root logger. format is "json" or "console".
func Setup(lvl, format string) error {
	parsed, err := zapcore.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", lvl, err)
	}
	level.SetLevel(parsed)

	l, err := build(format)
	if err != nil {
		return err
	}
	mu.Lock()
	root = l
	mu.Unlock()
	return nil
}

func build(format string) (*zap.Logger, error) {
	var conf zap.Config
	if format == "console" {
		conf = zap.NewDevelopmentConfig()
		conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		conf = zap.NewProductionConfig()
		conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	conf.Level = level
	conf.DisableStacktrace = true
	return conf.Build()
}

// Root returns the process wide logger, building a default one on first use.
func Root() *zap.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		built, err := build("json")
		if err != nil {
			built = zap.NewNop()
		}
		root = built
	}
	return root
}

func Named(name string) (*Logger, error) {
	if name == "" {
		return nil, fmt.Errorf("logger name is required")
	}
	return &Logger{SugaredLogger: Root().Named(name).Sugar()}, nil
}

func MustNamed(name string) *Logger {
	l, err := Named(name)
	if err != nil {
		panic(err)
	}
	return l
}

func Sync() {
	_ = Root().Sync()
}
