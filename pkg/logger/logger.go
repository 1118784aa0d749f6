package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"igsync/pkg/config"
)

// Logger is the structured logging surface used across igsync.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
	WithContext(ctx context.Context) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
	FatalWithFields(msg string, fields map[string]interface{})

	// GetZerolog exposes the underlying logger for libraries that want one.
	GetZerolog() *zerolog.Logger
}

// Version is stamped into every line; the CLI overrides it at build time.
var Version = "dev"

var levelNames = map[string]zerolog.Level{
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"":         zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
}

func parseLogLevel(level string) (zerolog.Level, error) {
	if lvl, ok := levelNames[strings.ToLower(level)]; ok {
		return lvl, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
}

// New builds a logger that pretty-prints to stderr and, when cfg.File is
// set, also appends JSON lines to a size-rotated file.
func New(cfg *config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.TimeFieldFormat = time.RFC3339

	sinks := []io.Writer{consoleWriter(os.Stderr)}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to setup file output: %w", err)
		}
		sinks = append(sinks, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	z := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "igsync").
		Str("version", Version).
		Logger()
	return wrap(z), nil
}

var levelBadges = map[string]string{
	"debug": "\033[37mDEBG\033[0m",
	"info":  "\033[32mINFO\033[0m",
	"warn":  "\033[33mWARN\033[0m",
	"error": "\033[31mERRO\033[0m",
	"fatal": "\033[35mFATL\033[0m",
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           out,
		TimeFormat:    "15:04:05",
		FieldsExclude: []string{"app", "version"},
		FormatLevel: func(i interface{}) string {
			name := fmt.Sprint(i)
			if badge, ok := levelBadges[name]; ok {
				return badge
			}
			return strings.ToUpper(name)
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("| %s", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[36m%s\033[0m:", i)
		},
	}
}

// zerologLogger bakes its fields into the zerolog context, so children
// never share mutable state with their parent.
type zerologLogger struct {
	z zerolog.Logger
}

func wrap(z zerolog.Logger) *zerologLogger { return &zerologLogger{z: z} }

func (l *zerologLogger) Debug(msg string) { l.z.Debug().Msg(msg) }
func (l *zerologLogger) Info(msg string)  { l.z.Info().Msg(msg) }
func (l *zerologLogger) Warn(msg string)  { l.z.Warn().Msg(msg) }
func (l *zerologLogger) Error(msg string) { l.z.Error().Msg(msg) }

// Fatal exits the process after writing.
func (l *zerologLogger) Fatal(msg string) { l.z.Fatal().Msg(msg) }

func (l *zerologLogger) DebugWithFields(msg string, f map[string]interface{}) {
	l.z.Debug().Fields(f).Msg(msg)
}

func (l *zerologLogger) InfoWithFields(msg string, f map[string]interface{}) {
	l.z.Info().Fields(f).Msg(msg)
}

func (l *zerologLogger) WarnWithFields(msg string, f map[string]interface{}) {
	l.z.Warn().Fields(f).Msg(msg)
}

func (l *zerologLogger) ErrorWithFields(msg string, f map[string]interface{}) {
	l.z.Error().Fields(f).Msg(msg)
}

func (l *zerologLogger) FatalWithFields(msg string, f map[string]interface{}) {
	l.z.Fatal().Fields(f).Msg(msg)
}

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return wrap(l.z.With().Interface(key, value).Logger())
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	return wrap(l.z.With().Fields(fields).Logger())
}

func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return wrap(l.z.With().Err(err).Logger())
}

func (l *zerologLogger) WithContext(ctx context.Context) Logger {
	return wrap(l.z.With().Ctx(ctx).Logger())
}

func (l *zerologLogger) GetZerolog() *zerolog.Logger { return &l.z }

var globalLogger Logger

// Initialize installs the process logger and mirrors it into zerolog's
// global so library code using log.Logger agrees on format.
func Initialize(cfg *config.LoggingConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	log.Logger = *l.GetZerolog()
	return nil
}

// GetLogger returns the process logger, falling back to info on the console.
func GetLogger() Logger {
	if globalLogger == nil {
		globalLogger, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return globalLogger
}
