package logx

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zemestet/relaybot/internal/core"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

// Init configures the global logger. Production gets JSON on stderr at info level,
// everything else gets a console writer with caller info at debug level.
func Init(otps ...LoggerOpts) {
	env := safe(otps...).Environment
	if env.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
		if env.Verbose() {
			log.Logger = log.Logger.Level(zerolog.DebugLevel)
		} else {
			log.Logger = log.Logger.Level(zerolog.InfoLevel)
		}
	}
	zerolog.DefaultContextLogger = &log.Logger
}

// With starts a child logger context from the global logger.
func With() zerolog.Context {
	return log.With()
}

// Ctx returns the logger attached to ctx, or the global logger once Init has run.
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

// Critical logs at fatal severity without terminating the process, so callers
// can still unwind and choose the exit code.
func Critical() *zerolog.Event {
	return log.WithLevel(zerolog.FatalLevel)
}
