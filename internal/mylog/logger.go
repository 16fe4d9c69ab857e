package mylog

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/habiliai/memoryd/config"
	"github.com/jcooky/go-din"
	"github.com/lmittmann/tint"
)

type Logger = slog.Logger

var (
	Key = din.NewRandomName()
)

func ToLogLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(logLevel string, logHandler string) *Logger {
	return NewLoggerWithWriter(logLevel, logHandler, os.Stderr)
}

func NewLoggerWithWriter(logLevel string, logHandler string, w io.Writer) *Logger {
	slogLevel := ToLogLevel(logLevel)

	var handler slog.Handler
	switch logHandler {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     slogLevel,
		})
	default:
		handler = newHandler(slogLevel, w)
	}

	return slog.New(handler)
}

// Discard is used by tests and by components constructed without a logger.
func Discard() *Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(level slog.Level, w io.Writer) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		AddSource:  level == slog.LevelDebug,
	})
}

func init() {
	din.Register(Key, func(c *din.Container) (any, error) {
		conf, err := din.GetT[*config.LogConfig](c)
		if err != nil {
			return nil, err
		}

		return NewLogger(conf.LogLevel, conf.LogHandler), nil
	})
}
