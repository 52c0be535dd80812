package logger

import (
	"io"
	"os"
	"time"

	"engagement-rewards/pkg/money"

	"github.com/rs/zerolog"
)

// ServiceName is stamped on every log line.
const ServiceName = "engagement-rewards"

// New returns the process logger writing to stdout.
// level: debug, info, warn, error. pretty: console output for local runs.
func New(level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(level, w).With().Caller().Logger()
}

// NewWithWriter is New with a caller-supplied sink and no caller field.
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
}

// Component derives a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Amount adds a ledger amount as minor units plus its decimal text:
//
//	log.Info().Func(logger.Amount(3000)).Msg("credited") // "amount_minor":3000,"amount":"30.00"
func Amount(minor int64) func(*zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Int64("amount_minor", minor).Str("amount", money.Format(minor))
	}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
