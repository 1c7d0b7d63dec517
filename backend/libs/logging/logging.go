package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats accepted in LOG_FORMAT.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options controls the logger built by New. Empty fields fall back to info level and JSON.
type Options struct {
	Service string
	Level   string
	Format  string
}

// NewLogger configures a zap logger for the named service from LOG_LEVEL and LOG_FORMAT.
func NewLogger(service string) (*zap.Logger, error) {
	return New(Options{
		Service: service,
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
	})
}

// New builds a logger from explicit options.
func New(opts Options) (*zap.Logger, error) {
	encoding := FormatJSON
	encoder := encoderConfig()
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		encoding = FormatConsole
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(ParseLevel(opts.Level)),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if opts.Service != "" {
		logger = logger.Named(opts.Service).With(zap.String("service", opts.Service))
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level; unknown or empty names mean info.
func ParseLevel(raw string) zapcore.Level {
	var level zapcore.Level
	if err := level.Set(strings.ToLower(strings.TrimSpace(raw))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.UTC().Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
