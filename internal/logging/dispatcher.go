package logging

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DispatcherLogger writes dispatcher events through zerolog. Errors land under
// "error", durations are rendered in milliseconds and every event is stamped
// with the riding session when one is set.
type DispatcherLogger struct {
	logger  zerolog.Logger
	session *Session
}

// NewDispatcherLogger wraps logger. session may be nil.
func NewDispatcherLogger(logger zerolog.Logger, session *Session) *DispatcherLogger {
	return &DispatcherLogger{logger: logger, session: session}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

func (l *DispatcherLogger) write(e *zerolog.Event, msg string, keysAndValues []any) {
	if e == nil {
		return
	}
	if l.session != nil {
		e = e.Str("session", l.session.ID)
		if mode := l.session.DrivingMode(); mode != "" {
			e = e.Str("drivingMode", mode)
		}
	}
	appendFields(e, keysAndValues).Msg(msg)
}

// appendFields adds key-value pairs to e with typed encoders. Non-string keys
// and a trailing key without value are dropped.
func appendFields(e *zerolog.Event, keysAndValues []any) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		case string:
			e = e.Str(key, v)
		case int:
			e = e.Int(key, v)
		case bool:
			e = e.Bool(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
