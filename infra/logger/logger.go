package logger

import corelogger "github.com/kilianp07/wsd/core/logger"

// Logger is the interface handed to actors and adapters.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
func (n NopLogger) With(string, string) Logger  { return n }

// New returns a Logger tagged with component, writing in the format chosen
// by Configure.
func New(component string) Logger {
	w, console := output()
	return newZerolog(w, console, component)
}
