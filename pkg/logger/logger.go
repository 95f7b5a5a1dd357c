package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Hook receives every emitted entry, used to ship logs to an external store.
type Hook func(level Level, msg string, fields map[string]interface{})

// Options controls the encoder and destination.
type Options struct {
	Level  string
	Format string // "console" or "json"
	Output io.Writer
}

type Logger struct {
	sugar *zap.SugaredLogger
	level Level
	hooks []Hook
	bound []interface{}
}

// New creates a console logger writing to stdout.
func New(level string) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions creates a logger backed by zap.
func NewWithOptions(opts Options) *Logger {
	lvl := parseLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), toZapLevel(lvl))

	return &Logger{
		sugar: zap.New(core).Sugar(),
		level: lvl,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar(), level: ERROR + 1}
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child logger with key/value pairs attached to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	bound := make([]interface{}, 0, len(l.bound)+len(args))
	bound = append(bound, l.bound...)
	bound = append(bound, args...)

	return &Logger{
		sugar: l.sugar.With(args...),
		level: l.level,
		hooks: l.hooks,
		bound: bound,
	}
}

// WithHook returns a logger that also passes entries to h.
func (l *Logger) WithHook(h Hook) *Logger {
	hooks := make([]Hook, 0, len(l.hooks)+1)
	hooks = append(hooks, l.hooks...)
	hooks = append(hooks, h)

	return &Logger{
		sugar: l.sugar,
		level: l.level,
		hooks: hooks,
		bound: l.bound,
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DEBUG {
		l.sugar.Debugw(msg, args...)
		l.fire(DEBUG, msg, args)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= INFO {
		l.sugar.Infow(msg, args...)
		l.fire(INFO, msg, args)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WARN {
		l.sugar.Warnw(msg, args...)
		l.fire(WARN, msg, args)
	}
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	if l.level <= ERROR {
		if err != nil {
			args = append(args, "error", err.Error())
		}
		l.sugar.Errorw(msg, args...)
		l.fire(ERROR, msg, args)
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) fire(level Level, msg string, args []interface{}) {
	if len(l.hooks) == 0 {
		return
	}

	fields := make(map[string]interface{}, (len(l.bound)+len(args))/2)
	collect := func(kv []interface{}) {
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				fields[key] = kv[i+1]
			}
		}
	}
	collect(l.bound)
	collect(args)

	for _, h := range l.hooks {
		h(level, msg, fields)
	}
}
