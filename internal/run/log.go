package run

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// Log is the append-only per-run log. Every line carries a
// [YYYY-MM-DD HH:MM:SS] prefix. Appends happen from one goroutine at a time.
type Log struct {
	w   io.Writer
	now func() time.Time
	err error
}

// NewLog wraps w as a run log
func NewLog(w io.Writer) *Log {
	return &Log{w: w, now: time.Now}
}

// Discard returns a log that drops every line
func Discard() *Log {
	return NewLog(io.Discard)
}

// Printf appends one timestamped line
func (l *Log) Printf(format string, args ...interface{}) {
	l.Line(fmt.Sprintf(format, args...))
}

// Line appends text, one timestamped line per embedded newline
func (l *Log) Line(text string) {
	if l == nil {
		return
	}
	text = strings.TrimRight(text, "\r\n")
	ts := l.now().Format(LineTimestampLayout)
	for _, line := range strings.Split(text, "\n") {
		if _, err := fmt.Fprintf(l.w, "[%s] %s\n", ts, strings.TrimRight(line, "\r")); err != nil && l.err == nil {
			l.err = err
		}
	}
}

// Err returns the first write error, if any
func (l *Log) Err() error {
	if l == nil {
		return nil
	}
	return l.err
}

// Close closes the underlying writer when it is closable
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Writer returns an io.Writer that appends each complete line it receives,
// prefixed with prefix. Call Flush on the result after the producer is done.
func (l *Log) Writer(prefix string) *LineWriter {
	return &LineWriter{log: l, prefix: prefix}
}

// LineWriter splits a byte stream into run log lines
type LineWriter struct {
	log    *Log
	prefix string
	buf    bytes.Buffer
}

// Write implements io.Writer
func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.log.Line(w.prefix + strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush writes any trailing partial line
func (w *LineWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.log.Line(w.prefix + w.buf.String())
	w.buf.Reset()
}
