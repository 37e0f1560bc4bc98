package os

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging capability injected into every
// component, backed by zerolog instead of fmt.Printf.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// zerologLogger adapts zerolog.Logger to the Logger interface, pairing
// each message with a component field so multiplexed output stays
// attributable.
type zerologLogger struct {
	component string
	log       zerolog.Logger
}

// NewLogger creates a Logger that writes structured JSON to stderr,
// tagged with the given component name.
func NewLogger(component string) Logger {
	base := zerolog.New(os.Stderr).With().Timestamp().Str("component", component).Logger()
	return &zerologLogger{component: component, log: base}
}

func (l *zerologLogger) Debug(msg string, args ...any) { l.event(l.log.Debug(), msg, args) }
func (l *zerologLogger) Info(msg string, args ...any)  { l.event(l.log.Info(), msg, args) }
func (l *zerologLogger) Warn(msg string, args ...any)  { l.event(l.log.Warn(), msg, args) }
func (l *zerologLogger) Error(msg string, args ...any) { l.event(l.log.Error(), msg, args) }

// event fills key/value pairs from args (expected as alternating
// key, value like slog) before emitting msg.
func (l *zerologLogger) event(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
