package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologProvider creates zerolog-backed loggers.
type ZerologProvider struct {
	root zerolog.Logger
}

// NewZerologProvider writes JSON lines to stderr at level.
func NewZerologProvider(level zerolog.Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewConsoleProvider writes human-readable lines to stderr, for CLIs.
func NewConsoleProvider(level zerolog.Level) *ZerologProvider {
	return NewZerologProviderWithWriter(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}, level)
}

// NewZerologProviderWithWriter writes to w at level.
func NewZerologProviderWithWriter(w io.Writer, level zerolog.Level) *ZerologProvider {
	zerolog.TimeFieldFormat = time.RFC3339
	root := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &ZerologProvider{root: root}
}

// GetLogger returns the root logger.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{l: p.root}
}

// GetLoggerWithName returns a logger carrying ComponentKey=name.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: p.root.With().Str(ComponentKey, name).Logger()}
}

// Zerolog exposes the underlying logger for integrations that need it,
// such as HTTP request logging.
func (p *ZerologProvider) Zerolog() zerolog.Logger {
	return p.root
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, kv ...interface{}) { z.emit(z.l.Debug(), msg, kv) }
func (z *zerologLogger) Info(msg string, kv ...interface{})  { z.emit(z.l.Info(), msg, kv) }
func (z *zerologLogger) Warn(msg string, kv ...interface{})  { z.emit(z.l.Warn(), msg, kv) }
func (z *zerologLogger) Error(msg string, kv ...interface{}) { z.emit(z.l.Error(), msg, kv) }

func (z *zerologLogger) With(kv ...interface{}) Logger {
	ctx := z.l.With()
	for i := 0; i < len(kv); i += 2 {
		key := keyString(kv[i])
		if i+1 < len(kv) {
			ctx = ctx.Interface(key, kv[i+1])
		} else {
			ctx = ctx.Interface(key, nil)
		}
	}
	return &zerologLogger{l: ctx.Logger()}
}

func (z *zerologLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key := keyString(kv[i])
		if i+1 >= len(kv) {
			ev = ev.Interface(key, nil)
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case int64:
			ev = ev.Int64(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func keyString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
