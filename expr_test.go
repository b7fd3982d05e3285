package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeVars is a minimal varReader for expression tests: a flat map keyed
// by (ctxID, varID), ignoring ctxID since these tests only ever exercise
// a single context's expressions.
type fakeVars map[uint32]Value

func (f fakeVars) readVar(ctxID, varID uint32) (Value, error) {
	v, ok := f[varID]
	if !ok {
		return Value{}, runtimeUndefError{what: "var"}
	}
	return v, nil
}

func evalText(t *testing.T, text string, vars fakeVars) Value {
	t.Helper()
	n, err := compileExpr(text)
	require.NoError(t, err, "compile %q", text)
	v, err := evalExpr(n, 0, vars)
	require.NoError(t, err, "eval %q", text)
	return v
}

func TestExprPrecedence(t *testing.T) {
	for _, tc := range []struct {
		expr string
		want Value
	}{
		{"1 + 2 * 3", IntValue(7)},
		{"(1 + 2) * 3", IntValue(9)},
		{"2 ^ 3", FloatValue(8)},
		{"2 << 1 + 1", IntValue(5)}, // shift binds tighter than additive: (2<<1)+1 = 5, kind still INT
		{"TRUE && FALSE || TRUE", BoolValue(true)},
		{"1 < 2 && 2 < 3", BoolValue(true)},
		{"10 % 3", IntValue(1)},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalText(t, tc.expr, nil)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExprDoubleNegativeCollapses(t *testing.T) {
	require.Equal(t, IntValue(5), evalText(t, "--5", nil))
	require.Equal(t, IntValue(-5), evalText(t, "---5", nil))
	require.Equal(t, BoolValue(true), evalText(t, "!!TRUE", nil))
	require.Equal(t, BoolValue(false), evalText(t, "!TRUE", nil))
}

func TestExprBareVariableNeverCastTarget(t *testing.T) {
	// a bare @id variable paired with a float literal must be widened to
	// float itself, never the other way around (§4.2).
	vars := fakeVars{1: IntValue(2)}
	got := evalText(t, "@1 + 1.5", vars)
	require.Equal(t, KindFloat, got.Kind)
	require.InDelta(t, 3.5, float64(got.Float()), 0.0001)
}

func TestExprDivisionByZero(t *testing.T) {
	n, err := compileExpr("1 / 0")
	require.NoError(t, err)
	_, err = evalExpr(n, 0, fakeVars{})
	require.Error(t, err)
	require.Equal(t, ErrArith, Kind(err))
}

func TestExprIntrinsicCall(t *testing.T) {
	got := evalText(t, "max2(3; 7)", nil)
	require.Equal(t, KindFloat, got.Kind)
	require.InDelta(t, 7.0, float64(got.Float()), 0.0001)
}

func TestExprUnresolvedIdentifierIsCompilerBug(t *testing.T) {
	_, err := compileExpr("foo + 1")
	require.Error(t, err, "bare names must be substituted to @id before compileExpr ever runs")
}
