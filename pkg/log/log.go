package log

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithQueue creates a child logger with queue field
func WithQueue(queue string) zerolog.Logger {
	return Logger.With().Str("queue", queue).Logger()
}

// WithJob creates a child logger with job_id field
func WithJob(id int64) zerolog.Logger {
	return Logger.With().Int64("job_id", id).Logger()
}

// WithSpan creates a child logger with span_id field
func WithSpan(id int64) zerolog.Logger {
	return Logger.With().Int64("span_id", id).Logger()
}

// WithResourceType creates a child logger with resource_type field
func WithResourceType(rtype string) zerolog.Logger {
	return Logger.With().Str("resource_type", rtype).Logger()
}

// WithScheduleLoop creates a child logger tagged with a fresh opaque
// correlation id, so every log line a single scheduling-loop pass emits
// (across queues and callback invocations) can be grepped back
// together. Job and span identity stay int64 (spec.md §3); this id
// only correlates log output for a pass that touches several jobs.
func WithScheduleLoop() zerolog.Logger {
	return Logger.With().Str("loop_id", uuid.NewString()).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
