package scanview

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger is the application logger. It also satisfies world.Logger so it
// can be handed to engine packages as is.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// logLevel is shared by a logger and every logger derived from it with
// Named, so SetDebug on any of them switches all of them.
type logLevel struct {
	mu    sync.Mutex
	debug bool
}

// DefaultLogger writes "[prefix] LEVEL: message" lines. Debug and info go
// to out, warnings and errors to err.
type DefaultLogger struct {
	level  *logLevel
	prefix string
	out    *log.Logger
	err    *log.Logger
}

const logFlags = log.LstdFlags | log.Lmicroseconds

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return &DefaultLogger{
		level:  &logLevel{debug: debug},
		prefix: prefix,
		out:    log.New(os.Stdout, "", logFlags),
		err:    log.New(os.Stderr, "", logFlags),
	}
}

// NewWriterLogger sends every level to w.
func NewWriterLogger(w io.Writer, prefix string, debug bool) *DefaultLogger {
	l := log.New(w, "", logFlags)
	return &DefaultLogger{level: &logLevel{debug: debug}, prefix: prefix, out: l, err: l}
}

// Named derives a logger for one part of the viewer, "scanview/loader"
// for instance. The outputs and the debug switch are shared.
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	child := *l
	if l.prefix == "" {
		child.prefix = name
	} else {
		child.prefix = l.prefix + "/" + name
	}
	return &child
}

// Named derives a sub-logger when log supports it and returns log
// unchanged otherwise.
func Named(log Logger, name string) Logger {
	if d, ok := log.(*DefaultLogger); ok {
		return d.Named(name)
	}
	return log
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.level.mu.Lock()
	defer l.level.mu.Unlock()
	return l.level.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.level.mu.Lock()
	l.level.debug = enabled
	l.level.mu.Unlock()
}

func (l *DefaultLogger) line(level, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		return level + ": " + msg
	}
	return fmt.Sprintf("[%s] %s: %s", l.prefix, level, msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.DebugEnabled() {
		l.out.Print(l.line("DEBUG", format, args...))
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.line("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.line("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.line("ERROR", format, args...))
}

// LoggingModule installs the application logger as a resource. With
// Output set, every level goes there instead of stdout and stderr.
type LoggingModule struct {
	Prefix string
	Debug  bool
	Output io.Writer
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	if m.Output != nil {
		cmd.AddResources(NewWriterLogger(m.Output, m.Prefix, m.Debug))
		return
	}
	cmd.AddResources(NewDefaultLogger(m.Prefix, m.Debug))
}

type nopLogger struct{}

func NewNopLogger() Logger              { return nopLogger{} }
func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Logger returns the first Logger resource, or a no-op logger. Never nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}
