package i3dex

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
	}
}

// NewWriterLogger logs everything to the given writer. Used for the optional
// per-export log file placed next to the i3d output.
func NewWriterLogger(prefix string, debug bool, w io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(w, "", flags),
		err:    log.New(w, "", flags),
	}
}

// NewTeeLogger duplicates console output into w, so an export log file sees
// the same lines the console does.
func NewTeeLogger(prefix string, debug bool, w io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(io.MultiWriter(os.Stdout, w), "", flags),
		err:    log.New(io.MultiWriter(os.Stderr, w), "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.mu.Lock()
	dbg := l.debug
	l.mu.Unlock()
	if !dbg {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

// namedLogger prefixes every line with the name of the entity being
// processed. Nodes, shapes, materials and files all log through one of
// these, which keeps a big export log readable.
type namedLogger struct {
	base Logger
	name string
}

func logFor(base Logger, name string) Logger {
	return &namedLogger{base: base, name: name}
}

func (l *namedLogger) DebugEnabled() bool    { return l.base.DebugEnabled() }
func (l *namedLogger) SetDebug(enabled bool) { l.base.SetDebug(enabled) }

func (l *namedLogger) Debugf(format string, args ...any) {
	l.base.Debugf("[%s] %s", l.name, fmt.Sprintf(format, args...))
}

func (l *namedLogger) Infof(format string, args ...any) {
	l.base.Infof("[%s] %s", l.name, fmt.Sprintf(format, args...))
}

func (l *namedLogger) Warnf(format string, args ...any) {
	l.base.Warnf("[%s] %s", l.name, fmt.Sprintf(format, args...))
}

func (l *namedLogger) Errorf(format string, args ...any) {
	l.base.Errorf("[%s] %s", l.name, fmt.Sprintf(format, args...))
}

// nopLogger is handy in tests that don't inspect log output.
type nopLogger struct{}

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
