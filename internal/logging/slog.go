package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies this program in every log sink.
const ServiceName = "motodash"

// Options configures SlogManager.Setup. Nil writers are skipped.
type Options struct {
	Level    string
	Console  io.Writer
	File     io.Writer
	Gelf     io.Writer
	Provider *sdklog.LoggerProvider
	Session  *Session
}

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger
	level  string

	// raw sinks, reused by the zerolog loggers
	writers []io.Writer

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	sinks   *SinkHandler
	session *Session
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the handler chain: console text, JSON file, JSON gelf and the
// OTel bridge as named sinks, wrapped in a SessionHandler when opts.Session
// is set. Calling Setup again replaces the logger.
func (m *SlogManager) Setup(opts Options) {
	lvl := parseLevel(opts.Level)
	m.level = opts.Level
	m.logProvider = opts.Provider
	m.session = opts.Session
	m.writers = m.writers[:0]

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var sinks []sink

	if opts.Console != nil {
		sinks = append(sinks, sink{name: SinkConsole, handler: slog.NewTextHandler(opts.Console, handlerOpts)})
		m.writers = append(m.writers, opts.Console)
	}
	if opts.File != nil {
		sinks = append(sinks, sink{name: SinkFile, handler: slog.NewJSONHandler(opts.File, handlerOpts)})
		m.writers = append(m.writers, opts.File)
	}
	if opts.Gelf != nil {
		sinks = append(sinks, sink{name: SinkGelf, handler: slog.NewJSONHandler(opts.Gelf, handlerOpts)})
		m.writers = append(m.writers, opts.Gelf)
	}
	if opts.Provider != nil {
		sinks = append(sinks, sink{name: SinkOTel, handler: otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(opts.Provider))})
	}

	m.sinks = newSinkHandler(sinks...)
	var handler slog.Handler = m.sinks
	if opts.Session != nil {
		handler = NewSessionHandler(handler, opts.Session)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", opts.Level)
}

// SinkFailures reports the failed writes per sink since the last Setup.
func (m *SlogManager) SinkFailures() map[string]int64 {
	if m.sinks == nil {
		return map[string]int64{}
	}
	return m.sinks.Failures()
}

// Session returns the session passed to Setup, if any.
func (m *SlogManager) Session() *Session {
	return m.session
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Zerolog returns a zerolog.Logger writing to the same sinks as the slog
// logger, tagged with the given component and the session id.
func (m *SlogManager) Zerolog(component string) zerolog.Logger {
	if len(m.writers) == 0 {
		return zerolog.Nop()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(m.level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(zerolog.MultiLevelWriter(m.writers...)).
		Level(lvl).
		With().
		Timestamp().
		Str("service", ServiceName).
		Str("component", component)
	if m.session != nil {
		ctx = ctx.Str("session", m.session.ID)
	}
	return ctx.Logger()
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry with the specified function name, data, and level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(data, "function", functionName)
	case slog.LevelWarn:
		m.logger.Warn(data, "function", functionName)
	case slog.LevelError:
		m.logger.Error(data, "function", functionName)
	default:
		m.logger.Info(data, "function", functionName)
	}
}
