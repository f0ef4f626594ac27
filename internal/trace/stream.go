package trace

import (
	"fmt"
	"io"
	"sync"
)

// StreamTracer writes events immediately to an io.Writer.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	runID  string
}

// NewStreamTracer creates a StreamTracer and writes the run header.
func NewStreamTracer(w io.Writer, level Level, format Format, runID string) *StreamTracer {
	st := &StreamTracer{w: w, level: level, format: format, runID: runID}
	if format == FormatText && runID != "" {
		// заголовок пишем best-effort
		_, _ = fmt.Fprintf(w, "# trace run %s\n", runID) //nolint:errcheck
	}
	return st
}

// Emit writes an event to the output.
func (t *StreamTracer) Emit(ev *Event) {
	if ev == nil || !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ev.Seq = NextSeq()
	// ошибки записи трейса не должны ломать резолв
	_, _ = t.w.Write(FormatEvent(ev, t.format, t.runID)) //nolint:errcheck
}

func (t *StreamTracer) Flush() error {
	if flusher, ok := t.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close flushes and closes the writer if it implements io.Closer.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if closer, ok := t.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
func (t *StreamTracer) RunID() string { return t.runID }
