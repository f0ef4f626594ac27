package diag

import (
	"sync"

	"vera/internal/source"
)

// одна и та же ошибка приходит из разных контекстов (прокси, повторный
// обход сигнатуры); код определяет severity, поэтому в ключе её нет
type reportKey struct {
	code Code
	span source.Span
	msg  string
}

// DedupReporter forwards each (code, primary span, message) once.
// It is safe for concurrent use by the parallel phases.
type DedupReporter struct {
	next Reporter

	mu         sync.Mutex
	seen       map[reportKey]struct{}
	suppressed int
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[reportKey]struct{})}
}

func (r *DedupReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	if r == nil {
		return
	}
	key := reportKey{code: code, span: primary, msg: msg}
	r.mu.Lock()
	_, dup := r.seen[key]
	if dup {
		r.suppressed++
	} else {
		r.seen[key] = struct{}{}
	}
	r.mu.Unlock()
	if !dup && r.next != nil {
		r.next.Report(code, sev, primary, msg, notes)
	}
}

// Suppressed returns how many repeats were dropped so far.
func (r *DedupReporter) Suppressed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed
}
