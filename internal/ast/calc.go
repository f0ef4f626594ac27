package ast

import (
	"fmt"
	"strings"
)

// CalcOp is a step relation of a calculation statement.
type CalcOp uint8

const (
	// NoCalcOp marks a step that uses the statement's default operator.
	NoCalcOp CalcOp = iota
	CalcEq
	CalcNeq
	CalcLt
	CalcLe
	CalcGt
	CalcGe
	CalcIff
	CalcImp
	CalcRevImp
)

var calcOpSpellings = [...]string{
	NoCalcOp:   "",
	CalcEq:     "==",
	CalcNeq:    "!=",
	CalcLt:     "<",
	CalcLe:     "<=",
	CalcGt:     ">",
	CalcGe:     ">=",
	CalcIff:    "<==>",
	CalcImp:    "==>",
	CalcRevImp: "<==",
}

func (op CalcOp) String() string {
	if int(op) < len(calcOpSpellings) {
		if op == NoCalcOp {
			return "default"
		}
		return calcOpSpellings[op]
	}
	return fmt.Sprintf("CalcOp(%d)", op)
}

func (op CalcOp) IsLogic() bool {
	return op == CalcIff || op == CalcImp || op == CalcRevImp
}

// ParseCalcOp accepts operator spellings and their names (eq, lt, iff, ...).
func ParseCalcOp(s string) (CalcOp, error) {
	s = strings.TrimSpace(s)
	for op, spelling := range calcOpSpellings {
		if op != int(NoCalcOp) && spelling == s {
			return CalcOp(op), nil
		}
	}
	switch strings.ToLower(s) {
	case "eq":
		return CalcEq, nil
	case "neq", "ne":
		return CalcNeq, nil
	case "lt":
		return CalcLt, nil
	case "le":
		return CalcLe, nil
	case "gt":
		return CalcGt, nil
	case "ge":
		return CalcGe, nil
	case "iff":
		return CalcIff, nil
	case "imp", "implies":
		return CalcImp, nil
	case "revimp", "explies":
		return CalcRevImp, nil
	}
	return NoCalcOp, fmt.Errorf("unknown calculation operator %q", s)
}

// CalcOpOf maps a binary operator to its calculation step, if it has one.
func CalcOpOf(op BinaryOp) (CalcOp, bool) {
	switch op {
	case BinEq:
		return CalcEq, true
	case BinNeq:
		return CalcNeq, true
	case BinLt:
		return CalcLt, true
	case BinLe:
		return CalcLe, true
	case BinGt:
		return CalcGt, true
	case BinGe:
		return CalcGe, true
	case BinIff:
		return CalcIff, true
	case BinImp:
		return CalcImp, true
	case BinRevImp:
		return CalcRevImp, true
	}
	return NoCalcOp, false
}

// Binary maps a step back to the binary operator that states it.
func (op CalcOp) Binary() BinaryOp {
	switch op {
	case CalcEq:
		return BinEq
	case CalcNeq:
		return BinNeq
	case CalcLt:
		return BinLt
	case CalcLe:
		return BinLe
	case CalcGt:
		return BinGt
	case CalcGe:
		return BinGe
	case CalcIff:
		return BinIff
	case CalcImp:
		return BinImp
	case CalcRevImp:
		return BinRevImp
	}
	panic(fmt.Sprintf("ast: %s has no binary form", op))
}

// Subsumes reports whether a chain with result a may absorb a step b.
func Subsumes(a, b CalcOp) bool {
	if a == b {
		return true
	}
	if a == CalcNeq || b == CalcNeq {
		// неравенство сочетается только с равенством
		return a == CalcEq && b == CalcNeq
	}
	if a == CalcEq {
		return b == CalcIff
	}
	if b == CalcEq {
		return a != CalcIff
	}
	if a.IsLogic() || b.IsLogic() {
		return a.IsLogic() && b.IsLogic() && (a == CalcImp || a == CalcRevImp) && b == CalcIff
	}
	return (a == CalcLt && b == CalcLe) || (a == CalcGt && b == CalcGe)
}

// Combine returns the operator subsuming both a and b, if any.
func Combine(a, b CalcOp) (CalcOp, bool) {
	switch {
	case Subsumes(a, b):
		return a, true
	case Subsumes(b, a):
		return b, true
	}
	return NoCalcOp, false
}

// CalcError describes the first step that does not combine with the chain so far.
type CalcError struct {
	Step int
	Acc  CalcOp
	Op   CalcOp
}

func (e *CalcError) Error() string {
	return fmt.Sprintf("calculation step %d: %s cannot be combined with %s", e.Step, e.Op, e.Acc)
}

// ChainResult folds the steps of a calculation; NoCalcOp steps take def.
func ChainResult(def CalcOp, steps []CalcOp) (CalcOp, error) {
	if def == NoCalcOp {
		def = CalcEq
	}
	if len(steps) == 0 {
		return def, nil
	}
	effective := make([]CalcOp, len(steps))
	for i, op := range steps {
		if op == NoCalcOp {
			op = def
		}
		effective[i] = op
	}
	acc := effective[0]
	for i := 1; i < len(effective); i++ {
		next, ok := Combine(acc, effective[i])
		if !ok {
			return NoCalcOp, &CalcError{Step: i, Acc: acc, Op: effective[i]}
		}
		acc = next
	}
	for i, op := range effective {
		if !Subsumes(acc, op) {
			return NoCalcOp, &CalcError{Step: i, Acc: acc, Op: op}
		}
	}
	return acc, nil
}
