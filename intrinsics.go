package main

import "math"

// intrinsicArity distinguishes the three call shapes in §4.2: a unary math
// function, a fixed-arity reduction of exactly two operands, and a
// variadic reduction over one or more operands.
type intrinsicArity uint8

const (
	arityUnary intrinsicArity = iota
	arityBinary
	arityVariadic
)

type intrinsicDef struct {
	arity intrinsicArity
	unary func(float64) float64
	binOp func(a, b float64) float64
}

// intrinsicTable is the fixed catalog from C8: unary math functions, the
// two-argument min2/max2, and the variadic minx/maxx reductions. Dispatch
// by name into this table is the Go analogue of gothird's
// vmCodeTable-by-enum idiom (first.go), specialized to a name-keyed map
// since intrinsic names, unlike opcodes, are an open but small surface
// matched by identifier rather than a dense integer.
var intrinsicTable = map[string]intrinsicDef{
	"abs":     {arity: arityUnary, unary: math.Abs},
	"sqrt":    {arity: arityUnary, unary: math.Sqrt},
	"floor":   {arity: arityUnary, unary: math.Floor},
	"ceiling": {arity: arityUnary, unary: math.Ceil},
	"sin":     {arity: arityUnary, unary: math.Sin},
	"cos":     {arity: arityUnary, unary: math.Cos},
	"tan":     {arity: arityUnary, unary: math.Tan},
	"min2":    {arity: arityBinary, binOp: math.Min},
	"max2":    {arity: arityBinary, binOp: math.Max},
	"minx":    {arity: arityVariadic, binOp: math.Min},
	"maxx":    {arity: arityVariadic, binOp: math.Max},
}

// evalIntrinsic evaluates a compiled intrinsic-call node (§4.2): each
// argument is evaluated and widened to double, then reduced per the
// intrinsic's arity; the overall result is always a Value of Kind
// KindFloat, narrowed from the internal double-precision computation.
func evalIntrinsic(node *ExprNode, ctxID uint32, vr varReader) (Value, error) {
	def, ok := intrinsicTable[node.Intrinsic]
	if !ok {
		return Value{}, typeError{op: "intrinsic " + node.Intrinsic}
	}

	args := make([]float64, len(node.Args))
	for i, a := range node.Args {
		v, err := evalExpr(a, ctxID, vr)
		if err != nil {
			return Value{}, err
		}
		d, err := v.AsDouble()
		if err != nil {
			return Value{}, err
		}
		args[i] = d
	}

	switch def.arity {
	case arityUnary:
		if len(args) != 1 {
			return Value{}, typeError{op: node.Intrinsic + ": expected 1 argument"}
		}
		return valueFromDouble(def.unary(args[0])), nil

	case arityBinary:
		if len(args) != 2 {
			return Value{}, typeError{op: node.Intrinsic + ": expected 2 arguments"}
		}
		return valueFromDouble(def.binOp(args[0], args[1])), nil

	case arityVariadic:
		if len(args) == 0 {
			return Value{}, typeError{op: node.Intrinsic + ": expected at least 1 argument"}
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = def.binOp(acc, a)
		}
		return valueFromDouble(acc), nil
	}
	return Value{}, typeError{op: "intrinsic " + node.Intrinsic}
}
