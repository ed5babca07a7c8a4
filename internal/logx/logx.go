// Package logx wraps the global zerolog logger used across the service.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. Development mode logs human-readable output
// at debug level; everything else is JSON at info level.
func Init(development bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if development {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}

// Discard silences the global logger. Tests call it to keep output readable.
func Discard() {
	log.Logger = zerolog.New(io.Discard)
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// checkFields drops a field list that is not made of key/value pairs
// instead of letting zerolog panic on it.
func checkFields(level string, fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msg("odd number of log fields, fields ignored")
		return nil
	}
	return fields
}

func Info(msg string, fields ...any) {
	fields = checkFields("info", fields)
	Logger().Info().Fields(fields).CallerSkipFrame(1).Msg(msg)
}

func Warn(msg string, fields ...any) {
	fields = checkFields("warn", fields)
	Logger().Warn().Fields(fields).CallerSkipFrame(1).Msg(msg)
}

func Error(err error, msg string, fields ...any) {
	fields = checkFields("error", fields)
	Logger().Error().Err(err).Fields(fields).CallerSkipFrame(1).Msg(msg)
}

// Fatal logs and exits the process.
func Fatal(err error, msg string, fields ...any) {
	fields = checkFields("fatal", fields)
	Logger().Fatal().Err(err).Fields(fields).CallerSkipFrame(1).Msg(msg)
}
