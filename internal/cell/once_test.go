package cell

import (
	"errors"
	"testing"
)

func TestOnceSingleAssignment(t *testing.T) {
	var c Once[int]
	if c.IsSet() {
		t.Fatalf("zero cell must be empty")
	}
	if err := c.Set(7); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := c.Set(8); !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("second set = %v, want ErrAlreadySet", err)
	}
	if got := c.Get(); got != 7 {
		t.Fatalf("Get = %d, want 7", got)
	}
}

func TestOnceGetBeforeSetPanics(t *testing.T) {
	var c Once[string]
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrUnset) {
			t.Fatalf("expected ErrUnset panic, got %v", r)
		}
	}()
	_ = c.Get()
}

func TestOnceLookupAndDefault(t *testing.T) {
	var c Once[bool]
	if _, ok := c.Lookup(); ok {
		t.Fatalf("lookup on empty cell reported ok")
	}
	if !c.GetOr(true) {
		t.Fatalf("GetOr must return default on empty cell")
	}
	c.MustSet(false)
	if v, ok := c.Lookup(); !ok || v {
		t.Fatalf("Lookup = (%v, %v), want (false, true)", v, ok)
	}
}
