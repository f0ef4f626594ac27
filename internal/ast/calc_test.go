package ast

import (
	"errors"
	"testing"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		a, b CalcOp
		want CalcOp
		ok   bool
	}{
		{CalcEq, CalcEq, CalcEq, true},
		{CalcLt, CalcLe, CalcLt, true},
		{CalcLt, CalcGt, NoCalcOp, false},
		{CalcNeq, CalcEq, CalcEq, true},
		{CalcIff, CalcEq, CalcEq, true},
		{CalcIff, CalcLt, NoCalcOp, false},
		{CalcGe, CalcEq, CalcGe, true},
		{CalcImp, CalcIff, CalcImp, true},
		{CalcImp, CalcRevImp, NoCalcOp, false},
		{CalcNeq, CalcLt, NoCalcOp, false},
		{CalcNeq, CalcNeq, CalcNeq, true},
		{CalcLe, CalcGe, NoCalcOp, false},
	}
	for _, tt := range tests {
		for _, pair := range [][2]CalcOp{{tt.a, tt.b}, {tt.b, tt.a}} {
			got, ok := Combine(pair[0], pair[1])
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Combine(%s, %s) = %s, %v; want %s, %v", pair[0], pair[1], got, ok, tt.want, tt.ok)
			}
		}
	}
}

func TestCombineIdempotent(t *testing.T) {
	for op := CalcEq; op <= CalcRevImp; op++ {
		if got, ok := Combine(op, op); !ok || got != op {
			t.Fatalf("Combine(%s, %s) = %s, %v", op, op, got, ok)
		}
	}
}

func TestLogicNeverMixesWithRelations(t *testing.T) {
	logic := []CalcOp{CalcIff, CalcImp, CalcRevImp}
	rel := []CalcOp{CalcLt, CalcLe, CalcGt, CalcGe, CalcNeq}
	for _, l := range logic {
		for _, r := range rel {
			if _, ok := Combine(l, r); ok {
				t.Fatalf("%s and %s must not combine", l, r)
			}
		}
	}
}

func TestChainResult(t *testing.T) {
	got, err := ChainResult(CalcEq, []CalcOp{NoCalcOp, CalcLt, CalcLe, NoCalcOp})
	if err != nil || got != CalcLt {
		t.Fatalf("== < <= == : got %s, %v", got, err)
	}
	got, err = ChainResult(CalcImp, []CalcOp{NoCalcOp, CalcIff})
	if err != nil || got != CalcImp {
		t.Fatalf("==> <==> : got %s, %v", got, err)
	}
	got, err = ChainResult(NoCalcOp, nil)
	if err != nil || got != CalcEq {
		t.Fatalf("empty chain: got %s, %v", got, err)
	}

	_, err = ChainResult(CalcEq, []CalcOp{CalcLt, CalcEq, CalcGt})
	var ce *CalcError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CalcError, got %v", err)
	}
	if ce.Step != 2 || ce.Acc != CalcLt || ce.Op != CalcGt {
		t.Fatalf("unexpected error detail: %+v", ce)
	}
}

func TestParseCalcOp(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want CalcOp
	}{
		{"==", CalcEq}, {"<=", CalcLe}, {"<==>", CalcIff}, {"==>", CalcImp},
		{"<==", CalcRevImp}, {"lt", CalcLt}, {"NEQ", CalcNeq}, {" >= ", CalcGe},
	} {
		got, err := ParseCalcOp(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseCalcOp(%q) = %s, %v", tt.in, got, err)
		}
	}
	if _, err := ParseCalcOp("~"); err == nil {
		t.Fatalf("unknown operator must fail")
	}
}
