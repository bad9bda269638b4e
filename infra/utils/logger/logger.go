package logger

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func init() {
	std = New(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.DefaultContextLogger = &std.zl
	zerolog.ErrorStackFieldName = "trace"
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if traceErr, ok := err.(stackTracer); ok {
			return traceErr.StackTrace()
		}
		return nil
	}
}

var (
	std *Logger
)

// Logger - то же самое что и пакетные функции, но его можно передать явно
// (коннектору, агенту), чтобы не тащить глобальное состояние в ядро
type Logger struct {
	zl zerolog.Logger
}

func New(w io.Writer) *Logger {
	return &Logger{
		zl: zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel),
	}
}

// Nop - ничего не пишет, удобно в тестах
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Default - общий логгер процесса
func Default() *Logger {
	return std
}

// With - дочерний логгер с дополнительным полем
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l *Logger) Info(message string) {
	l.zl.Info().Msg(message)
}
func (l *Logger) Infof(message string, args ...interface{}) {
	l.zl.Info().Msgf(message, args...)
}
func (l *Logger) Debug(message string) {
	l.zl.Debug().Stack().Msg(message)
}
func (l *Logger) Debugf(message string, args ...interface{}) {
	l.zl.Debug().Stack().Msgf(message, args...)
}
func (l *Logger) Warnf(message string, args ...interface{}) {
	l.zl.Warn().Msgf(message, args...)
}
func (l *Logger) ErrorMessage(message string, args ...interface{}) {
	l.zl.Error().Stack().Msgf(message, args...)
}
func (l *Logger) Error(err error) {
	l.zl.Error().Stack().Err(err).Send()
}
func (l *Logger) Errorf(err error, message string, args ...interface{}) {
	l.zl.Error().Stack().Err(err).Msgf(message, args...)
}

// SetLevel - debug, info, warn, error; все непонятное превращается в info
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	std.zl = std.zl.Level(lvl)
}

func Info(message string) {
	std.Info(message)
}
func Infof(message string, args ...interface{}) {
	std.Infof(message, args...)
}
func Debug(message string) {
	std.Debug(message)
}
func Debugf(message string, args ...interface{}) {
	std.Debugf(message, args...)
}
func Warnf(message string, args ...interface{}) {
	std.Warnf(message, args...)
}

func ErrorMessage(message string, args ...interface{}) {
	std.ErrorMessage(message, args...)
}

func Error(err error) {
	std.Error(err)
}
func Errorf(err error, message string, args ...interface{}) {
	std.Errorf(err, message, args...)
}

func Fatalf(message string, args ...interface{}) {
	std.zl.Fatal().Caller().Msgf(message, args...)
}
