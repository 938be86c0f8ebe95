// Package logging builds the logr.Logger used across postureboard, backed by
// zap with an optional rotated JSON log file.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	DevMode bool
	// Level is a zap level name such as debug, info or error.
	Level string
	// File enables a rotated JSON log file in addition to the console output.
	File string
	// Writer replaces os.Stderr as the console destination.
	Writer io.Writer
}

// New returns the root logger and a function that flushes buffered entries.
func New(opts Options) (logr.Logger, func(), error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return logr.Discard(), func() {}, fmt.Errorf("parsing log level: %w", err)
		}
	}
	if opts.DevMode && opts.Level == "" {
		level = zapcore.DebugLevel
	}

	var out io.Writer = os.Stderr
	if opts.Writer != nil {
		out = opts.Writer
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if opts.DevMode {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(devCfg)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(out), level),
	}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level))
	}

	zapOpts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.DevMode {
		zapOpts = append(zapOpts, zap.AddCaller(), zap.Development())
	}
	zl := zap.New(zapcore.NewTee(cores...), zapOpts...)

	flush := func() {
		_ = zl.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return zapr.NewLogger(zl), flush, nil
}
