package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes leveled lines tagged with a component name and the run ID.
//
//	[2006-01-02 15:04:05.000] [locator] [INFO] message
type Logger struct {
	component string
	runID     string
	sink      *sink
}

// sink is shared by every logger derived from the same Init call.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	debug bool
	path  string
}

// Options configures the process-wide log sink.
type Options struct {
	// Dir, when set, adds a <run-id>-stripedl.log file in that directory.
	Dir    string
	Debug  bool
	Stderr io.Writer
}

var (
	runID     string
	runIDOnce sync.Once

	defaultMu   sync.Mutex
	defaultSink = &sink{out: os.Stderr}
)

// RunID returns the identifier of this process run.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// Init replaces the process-wide sink. If the log file cannot be opened the
// sink still writes to stderr and the error is returned.
func Init(opts Options) error {
	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	s := &sink{out: out, debug: opts.Debug}

	var err error
	if opts.Dir != "" {
		if mkErr := os.MkdirAll(opts.Dir, 0750); mkErr != nil {
			err = fmt.Errorf("failed to create log directory: %w", mkErr)
		} else {
			path := filepath.Join(opts.Dir, RunID()+"-stripedl.log")
			f, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if openErr != nil {
				err = fmt.Errorf("failed to open log file: %w", openErr)
			} else {
				s.file = f
				s.path = path
				s.out = io.MultiWriter(out, f)
			}
		}
	}

	defaultMu.Lock()
	old := defaultSink
	defaultSink = s
	defaultMu.Unlock()
	if old.file != nil {
		_ = old.file.Close()
	}
	return err
}

// Close flushes and closes the log file, if any.
func Close() error {
	defaultMu.Lock()
	s := defaultSink
	defaultMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// LogPath returns the current log file path, or "" when logging to stderr only.
func LogPath() string {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultSink.path
}

// NewLogger returns a logger for component bound to the process-wide sink.
func NewLogger(component string) *Logger {
	defaultMu.Lock()
	s := defaultSink
	defaultMu.Unlock()
	return &Logger{component: component, runID: RunID(), sink: s}
}

// NewWriterLogger returns a logger that writes only to w. Debug lines are
// included when debug is true.
func NewWriterLogger(component string, w io.Writer, debug bool) *Logger {
	return &Logger{component: component, runID: RunID(), sink: &sink{out: w, debug: debug}}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger("", io.Discard, false)
}

// With returns a logger for another component sharing the same sink.
func (l *Logger) With(component string) *Logger {
	return &Logger{component: component, runID: l.runID, sink: l.sink}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) write(level, format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	fmt.Fprintf(l.sink.out, "[%s] [%s] [%s] %s\n", timestamp, l.component, level, message)
}

// Debugf logs only when debug output is enabled.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if !l.sink.debug {
		return
	}
	l.write("DEBUG", format, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}
