package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	precondErrors "github.com/YuminosukeSato/precond/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

func init() {
	precondErrors.SetZerologWarnFunc(logWarning)
}

// SetupLogger configures the default zerolog provider to write JSON lines to
// stdout at the given level ("debug", "info", "warn" or "error").
func SetupLogger(loglevel string) {
	SetProvider(NewZerologProvider(os.Stdout, ToLogLevel(loglevel)))
}

// ToLogLevel parses a level name. It panics on unknown names.
func ToLogLevel(level string) Level {
	switch level {
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

// SetProvider replaces the process-wide logger provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// ZerologProvider is the default LoggerProvider. Loggers handed out by a
// provider share its level, so SetLevel affects them retroactively.
type ZerologProvider struct {
	base  zerolog.Logger
	level *atomic.Int64
}

// NewZerologProvider creates a provider writing JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	lv := &atomic.Int64{}
	lv.Store(int64(level))
	return &ZerologProvider{
		base:  zerolog.New(w).With().Timestamp().Logger(),
		level: lv,
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base, level: p.level}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With("component", name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int64
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.write(l.event(LevelDebug), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.write(l.event(LevelInfo), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.write(l.event(LevelWarn), msg, fields)
}

// Error treats a leading error value specially: it is logged under "error"
// together with its stack trace.
func (l *zerologLogger) Error(msg string, fields ...any) {
	e := l.event(LevelError)
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = withError(e, err)
			fields = fields[1:]
		}
	}
	l.write(e, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{
		zl:    l.zl.With().Fields(fields).Logger(),
		level: l.level,
	}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return Level(l.level.Load()) <= level
}

// event returns nil when level is filtered out; zerolog treats nil events as
// no-ops.
func (l *zerologLogger) event(level Level) *zerolog.Event {
	if !l.Enabled(context.Background(), level) {
		return nil
	}
	switch level {
	case LevelDebug:
		return l.zl.Debug()
	case LevelInfo:
		return l.zl.Info()
	case LevelWarn:
		return l.zl.Warn()
	default:
		return l.zl.Error()
	}
}

func (l *zerologLogger) write(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	e.Fields(fields).Msg(msg)
}

func withError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Err(err)
	if stacktrace := extractStacktrace(err); stacktrace != "" {
		e = e.Str(StacktraceAttrKey, stacktrace)
	}
	return e
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// logWarning receives warnings raised through pkg/errors.Warn. Structured
// warnings are embedded field by field when the zerolog backend is active.
func logWarning(w error) {
	logger := GetLoggerWithName("warnings")
	if zl, ok := logger.(*zerologLogger); ok {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			if e := zl.event(LevelWarn); e != nil {
				e.EmbedObject(m).Msg(w.Error())
			}
			return
		}
	}
	logger.Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
}
