package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	outMu   sync.RWMutex
	out     io.Writer = os.Stdout
	console           = strings.ToLower(os.Getenv("APP_ENV")) == "dev"
)

func output() (io.Writer, bool) {
	outMu.RLock()
	defer outMu.RUnlock()
	return out, console
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger writes JSON lines with a component field to w.
func NewZerologLogger(w io.Writer, component string) Logger {
	return newZerolog(w, false, component)
}

func newZerolog(w io.Writer, human bool, component string) Logger {
	if human {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// Configure sets the global level and the format of loggers created
// afterwards. format is "json" or "console"; empty values keep the
// current setting.
func Configure(level, format string) error {
	if err := SetLevel(level); err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "":
	case "json":
		setConsole(false)
	case "console":
		setConsole(true)
	default:
		return fmt.Errorf("log format %q", format)
	}
	return nil
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

func setConsole(v bool) {
	outMu.Lock()
	defer outMu.Unlock()
	console = v
}

// SetLevel changes the global log level. An empty string keeps the current level.
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l *ZerologLogger) With(key, value string) Logger {
	return &ZerologLogger{log: l.log.With().Str(key, value).Logger()}
}
