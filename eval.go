package main

import "math"

// evalExpr walks a compiled expression tree (§4.2), resolving variable
// leaves through vr and applying each operator's casting policy. The
// overall result is coerced into the enclosing cell's declared type by
// the caller (Cell.Read), not here.
func evalExpr(n *ExprNode, ctxID uint32, vr varReader) (Value, error) {
	switch n.Kind {
	case nodeConst:
		return n.Const, nil

	case nodeVar:
		return vr.readVar(ctxID, n.VarID)

	case nodeUnary:
		return evalUnary(n, ctxID, vr)

	case nodeBinary:
		return evalBinary(n, ctxID, vr)

	case nodeIntrinsic:
		return evalIntrinsic(n, ctxID, vr)
	}
	return Value{}, typeError{op: "eval"}
}

func evalUnary(n *ExprNode, ctxID uint32, vr varReader) (Value, error) {
	v, err := evalExpr(n.Left, ctxID, vr)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case opNeg:
		switch v.Kind {
		case KindInt:
			return IntValue(-v.Int()), nil
		case KindFloat:
			return FloatValue(-v.Float()), nil
		case KindBool:
			b, err := v.CoerceTo(KindInt)
			if err != nil {
				return Value{}, err
			}
			return IntValue(-b.Int()), nil
		}
		return Value{}, typeError{op: "unary -", kind: v.Kind}

	case opNot:
		b, err := v.CoerceTo(KindBool)
		if err != nil {
			return Value{}, typeError{op: "unary !", kind: v.Kind}
		}
		return BoolValue(!b.Bool()), nil
	}
	return Value{}, typeError{op: "unary"}
}

// isBareLeaf reports whether n is a plain variable fetch with no further
// operator applied -- the "variable operand" that, per §4.2, is never a
// cast target when paired against a numeric literal.
func isBareLeaf(n *ExprNode) bool { return n.Kind == nodeVar }

func evalBinary(n *ExprNode, ctxID uint32, vr varReader) (Value, error) {
	lv, err := evalExpr(n.Left, ctxID, vr)
	if err != nil {
		return Value{}, err
	}
	rv, err := evalExpr(n.Right, ctxID, vr)
	if err != nil {
		return Value{}, err
	}

	switch n.Op {
	case opAnd, opOr:
		lb, err := lv.CoerceTo(KindBool)
		if err != nil {
			return Value{}, typeError{op: "&&/||", kind: lv.Kind}
		}
		rb, err := rv.CoerceTo(KindBool)
		if err != nil {
			return Value{}, typeError{op: "&&/||", kind: rv.Kind}
		}
		if n.Op == opAnd {
			return BoolValue(lb.Bool() && rb.Bool()), nil
		}
		return BoolValue(lb.Bool() || rb.Bool()), nil

	case opShl, opShr:
		li, err := lv.CoerceTo(KindInt)
		if err != nil {
			return Value{}, typeError{op: "shift", kind: lv.Kind, want: KindInt}
		}
		ri, err := rv.CoerceTo(KindInt)
		if err != nil {
			return Value{}, typeError{op: "shift", kind: rv.Kind, want: KindInt}
		}
		shift := uint32(ri.Int())
		if n.Op == opShl {
			return IntValue(li.Int() << shift), nil
		}
		return IntValue(li.Int() >> shift), nil

	case opPow:
		ld, err := lv.AsDouble()
		if err != nil {
			return Value{}, err
		}
		rd, err := rv.AsDouble()
		if err != nil {
			return Value{}, err
		}
		return valueFromDouble(math.Pow(ld, rd)), nil

	case opEq, opNeq, opLt, opGt, opLe, opGe:
		return evalComparison(n.Op, n, lv, rv)

	case opAdd, opSub, opMul, opDiv, opMod:
		return evalArith(n.Op, n, lv, rv)
	}
	return Value{}, typeError{op: "binary"}
}

// castPairForBinary resolves the operand widths for a numeric binary op,
// honoring §4.2's rule that a bare variable fetch paired with a literal is
// coerced to the literal's type rather than participating in the generic
// cast-to-maximum policy.
func castPairForBinary(n *ExprNode, lv, rv Value) (Value, Value, error) {
	if isBareLeaf(n.Left) && !isBareLeaf(n.Right) {
		lv2, err := lv.CoerceTo(rv.Kind)
		if err != nil {
			return Value{}, Value{}, err
		}
		return lv2, rv, nil
	}
	if isBareLeaf(n.Right) && !isBareLeaf(n.Left) {
		rv2, err := rv.CoerceTo(lv.Kind)
		if err != nil {
			return Value{}, Value{}, err
		}
		return lv, rv2, nil
	}
	target := lv.Kind
	if rv.Kind.width() > target.width() {
		target = rv.Kind
	}
	lv2, err := lv.CoerceTo(target)
	if err != nil {
		return Value{}, Value{}, err
	}
	rv2, err := rv.CoerceTo(target)
	if err != nil {
		return Value{}, Value{}, err
	}
	return lv2, rv2, nil
}

func evalComparison(op exprOp, n *ExprNode, lv, rv Value) (Value, error) {
	lv, rv, err := castPairForBinary(n, lv, rv)
	if err != nil {
		return Value{}, err
	}
	var cmp int
	switch lv.Kind {
	case KindBool:
		cmp = boolCmp(lv.Bool(), rv.Bool())
	case KindInt:
		cmp = intCmp(lv.Int(), rv.Int())
	case KindFloat:
		cmp = floatCmp(lv.Float(), rv.Float())
	default:
		return Value{}, typeError{op: "comparison", kind: lv.Kind}
	}
	switch op {
	case opEq:
		return BoolValue(cmp == 0), nil
	case opNeq:
		return BoolValue(cmp != 0), nil
	case opLt:
		return BoolValue(cmp < 0), nil
	case opGt:
		return BoolValue(cmp > 0), nil
	case opLe:
		return BoolValue(cmp <= 0), nil
	case opGe:
		return BoolValue(cmp >= 0), nil
	}
	return Value{}, typeError{op: "comparison"}
}

func boolCmp(a, b bool) int {
	ai, bi := boolInt32(a), boolInt32(b)
	return intCmp(ai, bi)
}
func intCmp(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func floatCmp(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func evalArith(op exprOp, n *ExprNode, lv, rv Value) (Value, error) {
	lv, rv, err := castPairForBinary(n, lv, rv)
	if err != nil {
		return Value{}, err
	}
	switch lv.Kind {
	case KindInt:
		a, b := lv.Int(), rv.Int()
		switch op {
		case opAdd:
			return IntValue(a + b), nil
		case opSub:
			return IntValue(a - b), nil
		case opMul:
			return IntValue(a * b), nil
		case opDiv:
			if b == 0 {
				return Value{}, arithError{msg: "division by zero"}
			}
			return IntValue(a / b), nil
		case opMod:
			if b == 0 {
				return Value{}, arithError{msg: "division by zero"}
			}
			return IntValue(a % b), nil
		}
	case KindFloat:
		a, b := float64(lv.Float()), float64(rv.Float())
		switch op {
		case opAdd:
			return valueFromDouble(a + b), nil
		case opSub:
			return valueFromDouble(a - b), nil
		case opMul:
			return valueFromDouble(a * b), nil
		case opDiv:
			if b == 0 {
				return Value{}, arithError{msg: "division by zero"}
			}
			return valueFromDouble(a / b), nil
		case opMod:
			if b == 0 {
				return Value{}, arithError{msg: "division by zero"}
			}
			return valueFromDouble(math.Mod(a, b)), nil
		}
	case KindBool:
		li, _ := lv.CoerceTo(KindInt)
		ri, _ := rv.CoerceTo(KindInt)
		return evalArith(op, n, li, ri)
	}
	return Value{}, typeError{op: "arithmetic", kind: lv.Kind}
}
